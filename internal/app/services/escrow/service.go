// Package escrow enforces the mission lifecycle state machine and custodies
// each mission's reward until a terminal outcome. Every entrypoint checks a
// whitelist of allowed states, completes all record mutation before moving
// value, and holds a per-mission latch across payouts so a transfer can never
// re-enter the mission it is paying out.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/fees"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/events"
	"github.com/MissionForge/escrow_layer/internal/app/metrics"
	"github.com/MissionForge/escrow_layer/internal/app/services/feerouter"
	"github.com/MissionForge/escrow_layer/internal/app/services/token"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

var (
	ErrZeroCaller           = errors.New("escrow: caller address must not be zero")
	ErrNotPoster            = errors.New("escrow: caller is not the mission poster")
	ErrNotPerformer         = errors.New("escrow: caller is not the mission performer")
	ErrNotResolver          = errors.New("escrow: caller is not the dispute resolver")
	ErrExpired              = errors.New("escrow: mission has expired")
	ErrNotExpired           = errors.New("escrow: mission has not expired yet")
	ErrProofRequired        = errors.New("escrow: proof hash is required")
	ErrDisputeAlreadyRaised = errors.New("escrow: dispute was already raised for this mission")
	ErrInvalidSplit         = errors.New("escrow: split must be between 0 and 10000 bps")
	ErrInvalidOutcome       = errors.New("escrow: outcome is not a settlement decision")
	ErrReentrancy           = errors.New("escrow: mission settlement already in progress")
)

// ReputationSink receives best-effort completion notifications. A sink error
// never blocks or reverts settlement.
type ReputationSink interface {
	RecordOutcome(ctx context.Context, missionID uint64, poster, performer identity.Address, completed bool, reward int64) error
}

// Service drives mission escrows through their lifecycle.
type Service struct {
	missions   storage.MissionStore
	ledger     token.Ledger
	router     *feerouter.Service
	reputation ReputationSink
	bus        *events.Bus
	log        *logger.Logger

	// resolver is the only identity allowed to raise and settle disputes.
	resolver identity.Address

	// inflight latches missions whose payout is mid-flight.
	mu       sync.Mutex
	inflight map[uint64]struct{}

	now func() time.Time
}

// New constructs the escrow service.
func New(missions storage.MissionStore, ledger token.Ledger, router *feerouter.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("escrow")
	}
	return &Service{
		missions: missions,
		ledger:   ledger,
		router:   router,
		log:      log,
		inflight: make(map[uint64]struct{}),
		now:      time.Now,
	}
}

// SetResolver fixes the dispute resolver identity. Must be called during
// wiring, before any dispute can be raised.
func (s *Service) SetResolver(addr identity.Address) {
	s.resolver = addr
}

// AttachReputation wires the best-effort reputation sink.
func (s *Service) AttachReputation(sink ReputationSink) {
	s.reputation = sink
}

// AttachBus wires the protocol event bus.
func (s *Service) AttachBus(bus *events.Bus) {
	s.bus = bus
}

// SetClock overrides the time source. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Accept assigns the caller as the mission performer.
func (s *Service) Accept(ctx context.Context, caller identity.Address, missionID uint64) (mission.Mission, error) {
	if caller.IsZero() {
		return mission.Mission{}, ErrZeroCaller
	}
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateOpen {
		return mission.Mission{}, &mission.StateError{Op: "accept", State: m.State}
	}
	if m.Expired(s.now()) {
		return mission.Mission{}, ErrExpired
	}

	m.Performer = caller
	m.State = mission.StateAccepted
	updated, err := s.missions.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}

	metrics.RecordMissionTransition(string(mission.StateAccepted))
	s.publish(events.TypeMissionAccepted, updated.ID, 0)
	return updated, nil
}

// SubmitProof records the performer's proof of completed work. A late
// submission is rejected so the poster's expiry reclaim stays available.
func (s *Service) SubmitProof(ctx context.Context, caller identity.Address, missionID uint64, proofHash string) (mission.Mission, error) {
	if proofHash == "" {
		return mission.Mission{}, ErrProofRequired
	}
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateAccepted {
		return mission.Mission{}, &mission.StateError{Op: "submit proof", State: m.State}
	}
	if caller != m.Performer {
		return mission.Mission{}, ErrNotPerformer
	}
	if m.Expired(s.now()) {
		return mission.Mission{}, ErrExpired
	}

	m.ProofHash = proofHash
	m.State = mission.StateSubmitted
	updated, err := s.missions.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}

	metrics.RecordMissionTransition(string(mission.StateSubmitted))
	s.publish(events.TypeProofSubmitted, updated.ID, 0)
	return updated, nil
}

// ApproveCompletion accepts the submitted work and pays the performer
// through the fee router.
func (s *Service) ApproveCompletion(ctx context.Context, caller identity.Address, missionID uint64) (mission.Mission, error) {
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateSubmitted {
		return mission.Mission{}, &mission.StateError{Op: "approve completion", State: m.State}
	}
	if caller != m.Poster {
		return mission.Mission{}, ErrNotPoster
	}

	if err := s.acquire(missionID); err != nil {
		return mission.Mission{}, err
	}
	defer s.release(missionID)

	m.State = mission.StateCompleted
	updated, err := s.missions.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}

	if err := s.routeReward(ctx, updated, updated.Performer, updated.Reward); err != nil {
		return mission.Mission{}, err
	}
	s.recordOutcome(ctx, updated, true)

	metrics.RecordMissionTransition(string(mission.StateCompleted))
	s.publish(events.TypeMissionCompleted, updated.ID, 0)
	s.log.WithField("mission_id", updated.ID).Info("mission completed")
	return updated, nil
}

// Cancel refunds an unaccepted mission to its poster.
func (s *Service) Cancel(ctx context.Context, caller identity.Address, missionID uint64) (mission.Mission, error) {
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateOpen {
		return mission.Mission{}, &mission.StateError{Op: "cancel", State: m.State}
	}
	if caller != m.Poster {
		return mission.Mission{}, ErrNotPoster
	}
	return s.cancelWithRefund(ctx, m)
}

// ClaimExpired reclaims funds from a mission whose window passed without
// submitted work. Submitted and Disputed missions are excluded by the state
// whitelist: a pending approval or an active dispute always outranks expiry.
func (s *Service) ClaimExpired(ctx context.Context, caller identity.Address, missionID uint64) (mission.Mission, error) {
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateOpen && m.State != mission.StateAccepted {
		return mission.Mission{}, &mission.StateError{Op: "claim expired", State: m.State}
	}
	if caller != m.Poster {
		return mission.Mission{}, ErrNotPoster
	}
	if !m.Expired(s.now()) {
		return mission.Mission{}, ErrNotExpired
	}
	return s.cancelWithRefund(ctx, m)
}

// RaiseDispute flips the mission into the disputed state. Only the dispute
// resolver may call this: a party raising a dispute directly would bypass
// deposit collection.
func (s *Service) RaiseDispute(ctx context.Context, caller identity.Address, missionID, disputeID uint64) (mission.Mission, error) {
	if s.resolver.IsZero() || caller != s.resolver {
		return mission.Mission{}, ErrNotResolver
	}
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateAccepted && m.State != mission.StateSubmitted {
		return mission.Mission{}, &mission.StateError{Op: "raise dispute", State: m.State}
	}
	if m.DisputeRaised {
		return mission.Mission{}, ErrDisputeAlreadyRaised
	}

	m.DisputeRaised = true
	m.DisputeID = disputeID
	m.State = mission.StateDisputed
	updated, err := s.missions.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}

	metrics.RecordMissionTransition(string(mission.StateDisputed))
	s.publish(events.TypeDisputeRaised, updated.ID, disputeID)
	return updated, nil
}

// Settle distributes the escrowed reward according to a dispute outcome.
// Only the dispute resolver may call this. Performer-favoring payouts route
// through the fee router exactly like normal completion, so a manufactured
// dispute earns a performer nothing over an approval.
func (s *Service) Settle(ctx context.Context, caller identity.Address, missionID uint64, outcome dispute.Outcome, splitBps int64) (mission.Mission, error) {
	if s.resolver.IsZero() || caller != s.resolver {
		return mission.Mission{}, ErrNotResolver
	}
	if !outcome.Valid() {
		return mission.Mission{}, ErrInvalidOutcome
	}
	if splitBps < 0 || splitBps > fees.BpsDenominator {
		return mission.Mission{}, ErrInvalidSplit
	}
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.State != mission.StateDisputed {
		return mission.Mission{}, &mission.StateError{Op: "settle dispute", State: m.State}
	}

	if err := s.acquire(missionID); err != nil {
		return mission.Mission{}, err
	}
	defer s.release(missionID)

	m.State = mission.StateCompleted
	updated, err := s.missions.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}

	switch outcome {
	case dispute.OutcomePosterWins, dispute.OutcomeCancelled:
		if err := s.ledger.Transfer(ctx, updated.Escrow, updated.Poster, updated.Reward); err != nil {
			return mission.Mission{}, fmt.Errorf("escrow: refund mission %d: %w", updated.ID, err)
		}
		s.recordOutcome(ctx, updated, false)
	case dispute.OutcomePerformerWins:
		if err := s.routeReward(ctx, updated, updated.Performer, updated.Reward); err != nil {
			return mission.Mission{}, err
		}
		s.recordOutcome(ctx, updated, true)
	case dispute.OutcomeSplit:
		performerShare := updated.Reward * splitBps / fees.BpsDenominator
		posterShare := updated.Reward - performerShare
		if performerShare > 0 {
			if err := s.routeReward(ctx, updated, updated.Performer, performerShare); err != nil {
				return mission.Mission{}, err
			}
		}
		if posterShare > 0 {
			if err := s.ledger.Transfer(ctx, updated.Escrow, updated.Poster, posterShare); err != nil {
				return mission.Mission{}, fmt.Errorf("escrow: split refund mission %d: %w", updated.ID, err)
			}
		}
		s.recordOutcome(ctx, updated, true)
	}

	metrics.RecordMissionTransition(string(mission.StateCompleted))
	s.publish(events.TypeMissionCompleted, updated.ID, updated.DisputeID)
	s.log.WithField("mission_id", updated.ID).Infof("mission settled: %s", outcome)
	return updated, nil
}

// Get returns a mission record.
func (s *Service) Get(ctx context.Context, id uint64) (mission.Mission, error) {
	return s.missions.GetMission(ctx, id)
}

// cancelWithRefund moves the mission to Cancelled and returns the full
// reward to the poster.
func (s *Service) cancelWithRefund(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	if err := s.acquire(m.ID); err != nil {
		return mission.Mission{}, err
	}
	defer s.release(m.ID)

	m.State = mission.StateCancelled
	updated, err := s.missions.UpdateMission(ctx, m)
	if err != nil {
		return mission.Mission{}, err
	}
	if err := s.ledger.Transfer(ctx, updated.Escrow, updated.Poster, updated.Reward); err != nil {
		return mission.Mission{}, fmt.Errorf("escrow: refund mission %d: %w", updated.ID, err)
	}

	metrics.RecordMissionTransition(string(mission.StateCancelled))
	s.publish(events.TypeMissionCancelled, updated.ID, 0)
	return updated, nil
}

// routeReward moves value into the fee router's custody and distributes it.
func (s *Service) routeReward(ctx context.Context, m mission.Mission, performer identity.Address, amount int64) error {
	if err := s.ledger.Transfer(ctx, m.Escrow, s.router.Custody(), amount); err != nil {
		return fmt.Errorf("escrow: move reward of mission %d to router: %w", m.ID, err)
	}
	if _, err := s.router.Distribute(ctx, m.Escrow, m.ID, performer, amount, m.Guild); err != nil {
		return fmt.Errorf("escrow: distribute reward of mission %d: %w", m.ID, err)
	}
	return nil
}

// recordOutcome notifies the reputation ledger. Best-effort: failures are
// logged and swallowed.
func (s *Service) recordOutcome(ctx context.Context, m mission.Mission, completed bool) {
	if s.reputation == nil {
		return
	}
	if err := s.reputation.RecordOutcome(ctx, m.ID, m.Poster, m.Performer, completed, m.Reward); err != nil {
		s.log.WithError(err).Warnf("reputation record for mission %d failed", m.ID)
	}
}

func (s *Service) publish(t events.Type, missionID, disputeID uint64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: t, MissionID: missionID, DisputeID: disputeID})
}

func (s *Service) acquire(missionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[missionID]; busy {
		return ErrReentrancy
	}
	s.inflight[missionID] = struct{}{}
	return nil
}

func (s *Service) release(missionID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, missionID)
}
