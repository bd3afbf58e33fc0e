// Package resolver orchestrates dispute resolution across all missions:
// deposit collection, evidence, investigator assignment, resolution, the
// appeal window, and finalization. The dispute deposit pool is a separate
// economic pool from each mission's escrowed reward; the resolver settles
// the escrow as a side effect of finalization and then distributes the pool.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/fees"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/events"
	"github.com/MissionForge/escrow_layer/internal/app/metrics"
	"github.com/MissionForge/escrow_layer/internal/app/services/escrow"
	"github.com/MissionForge/escrow_layer/internal/app/services/token"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

var (
	ErrNotParty            = errors.New("resolver: caller is not a party to this dispute")
	ErrNotDAO              = errors.New("resolver: caller is not the protocol DAO")
	ErrNotAssignedResolver = errors.New("resolver: caller is not the assigned resolver")
	ErrResolverAssigned    = errors.New("resolver: a resolver is already assigned")
	ErrZeroResolver        = errors.New("resolver: resolver address must not be zero")
	ErrDisputeActive       = errors.New("resolver: mission already has an active dispute")
	ErrEvidenceSubmitted   = errors.New("resolver: evidence already submitted for this party")
	ErrEvidenceRequired    = errors.New("resolver: evidence hash is required")
	ErrInvalidOutcome      = errors.New("resolver: outcome is not a real decision")
	ErrInvalidSplit        = errors.New("resolver: split must be between 0 and 10000 bps")
	ErrWinnerNotDeposited  = errors.New("resolver: winning party has not deposited the dispute reserve")
	ErrDepositsRequired    = errors.New("resolver: both parties must deposit before this outcome")
	ErrAppealWindowClosed  = errors.New("resolver: appeal window has closed")
	ErrAppealWindowOpen    = errors.New("resolver: appeal window is still open")
)

// Config fixes the resolver's protocol identities.
type Config struct {
	// Identity is the resolver contract's own address. The escrow service
	// recognizes it as the only caller allowed to raise and settle.
	Identity identity.Address
	// DAO may assign investigators and override appealed resolutions.
	DAO identity.Address
	// Custody holds dispute deposits until finalization.
	Custody identity.Address
	// ProtocolTreasury receives the protocol's skim of the deposit pool.
	ProtocolTreasury identity.Address
}

// Service is the shared dispute resolver. One instance tracks all disputes.
type Service struct {
	cfg      Config
	disputes storage.DisputeStore
	missions storage.MissionStore
	escrow   *escrow.Service
	ledger   token.Ledger
	bus      *events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New constructs the dispute resolver.
func New(cfg Config, disputes storage.DisputeStore, missions storage.MissionStore, esc *escrow.Service, ledger token.Ledger, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("resolver")
	}
	return &Service{
		cfg:      cfg,
		disputes: disputes,
		missions: missions,
		escrow:   esc,
		ledger:   ledger,
		log:      log,
		now:      time.Now,
	}
}

// AttachBus wires the protocol event bus.
func (s *Service) AttachBus(bus *events.Bus) {
	s.bus = bus
}

// SetClock overrides the time source. Test use only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Identity returns the resolver's protocol address.
func (s *Service) Identity() identity.Address {
	return s.cfg.Identity
}

// CreateDispute opens a dispute over a mission. The caller must be a party,
// must fund their Dynamic Dispute Reserve in the same call, and the mission
// flips to Disputed as a side effect.
func (s *Service) CreateDispute(ctx context.Context, caller identity.Address, missionID uint64) (dispute.Dispute, error) {
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if caller != m.Poster && caller != m.Performer {
		return dispute.Dispute{}, ErrNotParty
	}
	if m.State != mission.StateSubmitted && m.State != mission.StateDisputed {
		return dispute.Dispute{}, &mission.StateError{Op: "create dispute", State: m.State}
	}
	if _, err := s.disputes.GetActiveDisputeByMission(ctx, missionID); err == nil {
		return dispute.Dispute{}, ErrDisputeActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		return dispute.Dispute{}, err
	}

	id, err := s.disputes.NextDisputeID(ctx)
	if err != nil {
		return dispute.Dispute{}, fmt.Errorf("resolver: allocate dispute id: %w", err)
	}

	ddr := m.Reward * dispute.DDRBps / fees.BpsDenominator
	lpp := m.Reward * dispute.LPPBps / fees.BpsDenominator

	// Deposit before any record exists: a failed transfer aborts cleanly.
	if err := s.ledger.Transfer(ctx, caller, s.cfg.Custody, ddr); err != nil {
		return dispute.Dispute{}, fmt.Errorf("resolver: collect deposit for dispute %d: %w", id, err)
	}

	if m.State != mission.StateDisputed {
		if _, err := s.escrow.RaiseDispute(ctx, s.cfg.Identity, missionID, id); err != nil {
			if refundErr := s.ledger.Transfer(ctx, s.cfg.Custody, caller, ddr); refundErr != nil {
				s.log.WithError(refundErr).Errorf("deposit refund after failed raise on mission %d", missionID)
			}
			return dispute.Dispute{}, err
		}
	}

	d := dispute.Dispute{
		ID:        id,
		MissionID: m.ID,
		Escrow:    m.Escrow,
		Poster:    m.Poster,
		Performer: m.Performer,
		Initiator: caller,
		State:     dispute.StatePending,
		Outcome:   dispute.OutcomeNone,
		DDRAmount: ddr,
		LPPAmount: lpp,
		CreatedAt: s.now().UTC(),
	}
	if caller == m.Poster {
		d.PosterDeposited = true
	} else {
		d.PerformerDeposited = true
	}
	created, err := s.disputes.CreateDispute(ctx, d)
	if err != nil {
		return dispute.Dispute{}, fmt.Errorf("resolver: create dispute %d: %w", id, err)
	}

	metrics.RecordDisputeTransition(string(dispute.StatePending))
	s.publish(events.TypeDisputeRaised, created.MissionID, created.ID)
	s.log.WithField("dispute_id", created.ID).
		Infof("dispute opened on mission %d, ddr %d micro-units", created.MissionID, created.DDRAmount)
	return created, nil
}

// SubmitEvidence records a party's evidence hash, exactly once per party.
// The second party funds their reserve here if they have not yet deposited.
func (s *Service) SubmitEvidence(ctx context.Context, caller identity.Address, disputeID uint64, evidenceHash string) (dispute.Dispute, error) {
	if evidenceHash == "" {
		return dispute.Dispute{}, ErrEvidenceRequired
	}
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if d.State != dispute.StatePending && d.State != dispute.StateInvestigating {
		return dispute.Dispute{}, &dispute.StateError{Op: "submit evidence", State: d.State}
	}
	if !d.Party(caller) {
		return dispute.Dispute{}, ErrNotParty
	}

	isPoster := caller == d.Poster
	if (isPoster && d.PosterEvidence != "") || (!isPoster && d.PerformerEvidence != "") {
		return dispute.Dispute{}, ErrEvidenceSubmitted
	}

	deposited := d.PosterDeposited
	if !isPoster {
		deposited = d.PerformerDeposited
	}
	if !deposited {
		if err := s.ledger.Transfer(ctx, caller, s.cfg.Custody, d.DDRAmount); err != nil {
			return dispute.Dispute{}, fmt.Errorf("resolver: collect deposit for dispute %d: %w", d.ID, err)
		}
	}

	if isPoster {
		d.PosterEvidence = evidenceHash
		d.PosterDeposited = true
	} else {
		d.PerformerEvidence = evidenceHash
		d.PerformerDeposited = true
	}
	return s.disputes.UpdateDispute(ctx, d)
}

// AssignResolver designates the investigating resolver. DAO only.
func (s *Service) AssignResolver(ctx context.Context, caller identity.Address, disputeID uint64, investigator identity.Address) (dispute.Dispute, error) {
	if caller != s.cfg.DAO {
		return dispute.Dispute{}, ErrNotDAO
	}
	if investigator.IsZero() {
		return dispute.Dispute{}, ErrZeroResolver
	}
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if d.State != dispute.StatePending {
		return dispute.Dispute{}, &dispute.StateError{Op: "assign resolver", State: d.State}
	}
	if !d.Resolver.IsZero() {
		return dispute.Dispute{}, ErrResolverAssigned
	}

	d.Resolver = investigator
	d.State = dispute.StateInvestigating
	updated, err := s.disputes.UpdateDispute(ctx, d)
	if err != nil {
		return dispute.Dispute{}, err
	}
	metrics.RecordDisputeTransition(string(dispute.StateInvestigating))
	return updated, nil
}

// Resolve records the investigator's decision and opens the appeal window.
// The declared winner must have deposited their reserve; outcomes without a
// single winner require both deposits. A non-participating loser can never
// block resolution.
func (s *Service) Resolve(ctx context.Context, caller identity.Address, disputeID uint64, outcome dispute.Outcome, splitBps int64, resolutionHash string) (dispute.Dispute, error) {
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if d.State != dispute.StateInvestigating {
		return dispute.Dispute{}, &dispute.StateError{Op: "resolve", State: d.State}
	}
	if caller != d.Resolver {
		return dispute.Dispute{}, ErrNotAssignedResolver
	}
	if !outcome.Valid() {
		return dispute.Dispute{}, ErrInvalidOutcome
	}
	if splitBps < 0 || splitBps > fees.BpsDenominator {
		return dispute.Dispute{}, ErrInvalidSplit
	}
	if err := depositGate(d, outcome); err != nil {
		return dispute.Dispute{}, err
	}

	now := s.now().UTC()
	d.Outcome = outcome
	d.SplitBps = splitBps
	d.ResolutionHash = resolutionHash
	d.ResolvedAt = now
	d.AppealDeadline = now.Add(dispute.AppealWindow)
	d.State = dispute.StateResolved
	updated, err := s.disputes.UpdateDispute(ctx, d)
	if err != nil {
		return dispute.Dispute{}, err
	}

	metrics.RecordDisputeTransition(string(dispute.StateResolved))
	s.publish(events.TypeDisputeResolved, updated.MissionID, updated.ID)
	s.log.WithField("dispute_id", updated.ID).Infof("dispute resolved: %s", outcome)
	return updated, nil
}

// Appeal escalates a resolution to DAO review. Either party, inside the
// appeal window only.
func (s *Service) Appeal(ctx context.Context, caller identity.Address, disputeID uint64) (dispute.Dispute, error) {
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if d.State != dispute.StateResolved {
		return dispute.Dispute{}, &dispute.StateError{Op: "appeal", State: d.State}
	}
	if !d.Party(caller) {
		return dispute.Dispute{}, ErrNotParty
	}
	if s.now().After(d.AppealDeadline) {
		return dispute.Dispute{}, ErrAppealWindowClosed
	}

	d.State = dispute.StateAppealed
	updated, err := s.disputes.UpdateDispute(ctx, d)
	if err != nil {
		return dispute.Dispute{}, err
	}
	metrics.RecordDisputeTransition(string(dispute.StateAppealed))
	s.publish(events.TypeDisputeAppealed, updated.MissionID, updated.ID)
	return updated, nil
}

// Finalize settles a resolved dispute after the appeal window elapses.
// Anyone may call it. An appealed dispute never finalizes here: the state
// whitelist admits Resolved only, so the DAO override path is the sole exit
// from Appealed.
func (s *Service) Finalize(ctx context.Context, disputeID uint64) (dispute.Dispute, error) {
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if d.State != dispute.StateResolved {
		return dispute.Dispute{}, &dispute.StateError{Op: "finalize", State: d.State}
	}
	if !s.now().After(d.AppealDeadline) {
		return dispute.Dispute{}, ErrAppealWindowOpen
	}
	return s.finalize(ctx, d)
}

// Override lets the DAO replace the outcome of an appealed dispute and
// finalize it immediately.
func (s *Service) Override(ctx context.Context, caller identity.Address, disputeID uint64, outcome dispute.Outcome, splitBps int64, resolutionHash string) (dispute.Dispute, error) {
	if caller != s.cfg.DAO {
		return dispute.Dispute{}, ErrNotDAO
	}
	d, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return dispute.Dispute{}, err
	}
	if d.State != dispute.StateAppealed {
		return dispute.Dispute{}, &dispute.StateError{Op: "override", State: d.State}
	}
	if !outcome.Valid() {
		return dispute.Dispute{}, ErrInvalidOutcome
	}
	if splitBps < 0 || splitBps > fees.BpsDenominator {
		return dispute.Dispute{}, ErrInvalidSplit
	}

	d.Outcome = outcome
	d.SplitBps = splitBps
	if resolutionHash != "" {
		d.ResolutionHash = resolutionHash
	}
	return s.finalize(ctx, d)
}

// Get returns a dispute record.
func (s *Service) Get(ctx context.Context, id uint64) (dispute.Dispute, error) {
	return s.disputes.GetDispute(ctx, id)
}

// ListByState returns disputes in a given phase.
func (s *Service) ListByState(ctx context.Context, state dispute.State) ([]dispute.Dispute, error) {
	return s.disputes.ListDisputesByState(ctx, state)
}

// finalize marks the dispute terminal, settles the escrow, and distributes
// the deposit pool. Record mutation lands before any value moves.
func (s *Service) finalize(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error) {
	d.State = dispute.StateFinalized
	d.FinalizedAt = s.now().UTC()
	updated, err := s.disputes.UpdateDispute(ctx, d)
	if err != nil {
		return dispute.Dispute{}, err
	}

	if _, err := s.escrow.Settle(ctx, s.cfg.Identity, updated.MissionID, updated.Outcome, updated.SplitBps); err != nil {
		return dispute.Dispute{}, fmt.Errorf("resolver: settle escrow for dispute %d: %w", updated.ID, err)
	}
	if err := s.distributePool(ctx, updated); err != nil {
		return dispute.Dispute{}, err
	}

	metrics.RecordDisputeTransition(string(dispute.StateFinalized))
	s.publish(events.TypeDisputeFinalized, updated.MissionID, updated.ID)
	s.log.WithField("dispute_id", updated.ID).Infof("dispute finalized: %s", updated.Outcome)
	return updated, nil
}

// distributePool skims the resolver and protocol fees from the combined
// deposit pool, then splits the remainder between the parties according to
// the outcome.
func (s *Service) distributePool(ctx context.Context, d dispute.Dispute) error {
	pool := d.PoolBalance()
	if pool == 0 {
		return nil
	}

	resolverFee := pool * dispute.PoolResolverFeeBps / fees.BpsDenominator
	protocolFee := pool * dispute.PoolProtocolFeeBps / fees.BpsDenominator
	remainder := pool - resolverFee - protocolFee

	var posterShare, performerShare int64
	switch d.Outcome {
	case dispute.OutcomePosterWins:
		posterShare = remainder
	case dispute.OutcomePerformerWins:
		performerShare = remainder
	case dispute.OutcomeSplit:
		performerShare = remainder * d.SplitBps / fees.BpsDenominator
		posterShare = remainder - performerShare
	case dispute.OutcomeCancelled:
		// Per-party deposits are equal, so the deposit-proportional refund
		// reduces to an even split between depositors. The full
		// remainder*deposit product would overflow int64 at large rewards.
		switch {
		case d.PosterDeposited && d.PerformerDeposited:
			posterShare = remainder / 2
		case d.PosterDeposited:
			posterShare = remainder
		}
		performerShare = remainder - posterShare
	}

	legs := []struct {
		name   string
		to     identity.Address
		amount int64
	}{
		{"dispute_resolver", d.Resolver, resolverFee},
		{"dispute_protocol", s.cfg.ProtocolTreasury, protocolFee},
		{"dispute_poster", d.Poster, posterShare},
		{"dispute_performer", d.Performer, performerShare},
	}
	for _, leg := range legs {
		if leg.amount == 0 {
			continue
		}
		to := leg.to
		if to.IsZero() {
			// A dispute can finalize with no assigned resolver only via DAO
			// override of an appealed record; route the skim to the treasury.
			to = s.cfg.ProtocolTreasury
		}
		if err := s.ledger.Transfer(ctx, s.cfg.Custody, to, leg.amount); err != nil {
			return fmt.Errorf("resolver: %s leg for dispute %d: %w", leg.name, d.ID, err)
		}
		metrics.RecordPayout(leg.name, leg.amount)
	}
	return nil
}

func depositGate(d dispute.Dispute, outcome dispute.Outcome) error {
	switch outcome {
	case dispute.OutcomePosterWins:
		if !d.PosterDeposited {
			return ErrWinnerNotDeposited
		}
	case dispute.OutcomePerformerWins:
		if !d.PerformerDeposited {
			return ErrWinnerNotDeposited
		}
	case dispute.OutcomeSplit, dispute.OutcomeCancelled:
		if !d.PosterDeposited || !d.PerformerDeposited {
			return ErrDepositsRequired
		}
	}
	return nil
}

func (s *Service) publish(t events.Type, missionID, disputeID uint64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: t, MissionID: missionID, DisputeID: disputeID})
}
