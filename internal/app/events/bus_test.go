package events

import (
	"testing"
	"time"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{Type: TypeMissionCreated, MissionID: 7})

	select {
	case ev := <-ch:
		if ev.Type != TypeMissionCreated || ev.MissionID != 7 {
			t.Errorf("event = %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("publish must stamp the event time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(Event{Type: TypeDisputeRaised, DisputeID: 3})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.DisputeID != 3 {
				t.Errorf("event = %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the event")
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()

	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	// Cancel twice is harmless, and publishing after cancel must not panic.
	cancel()
	bus.Publish(Event{Type: TypeMissionCompleted})
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(Event{Type: TypeMissionCreated, MissionID: uint64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}
