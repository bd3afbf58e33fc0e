// Package events provides the in-process fan-out bus for protocol events.
// Publishing never blocks a protocol operation: slow subscribers drop events
// rather than stall settlement.
package events

import (
	"sync"
	"time"
)

// Type identifies a protocol event.
type Type string

const (
	TypeMissionCreated   Type = "mission.created"
	TypeMissionAccepted  Type = "mission.accepted"
	TypeProofSubmitted   Type = "mission.proof_submitted"
	TypeMissionCompleted Type = "mission.completed"
	TypeMissionCancelled Type = "mission.cancelled"
	TypeDisputeRaised    Type = "dispute.raised"
	TypeDisputeResolved  Type = "dispute.resolved"
	TypeDisputeAppealed  Type = "dispute.appealed"
	TypeDisputeFinalized Type = "dispute.finalized"
)

// Event is a single protocol occurrence.
type Event struct {
	Type      Type              `json:"type"`
	MissionID uint64            `json:"mission_id,omitempty"`
	DisputeID uint64            `json:"dispute_id,omitempty"`
	At        time.Time         `json:"at"`
	Fields    map[string]string `json:"fields,omitempty"`
}

const subscriberBuffer = 64

// Bus fans protocol events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel function. The channel is
// closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. Events are
// dropped for subscribers whose buffer is full.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
