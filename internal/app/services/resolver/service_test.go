package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/services/escrow"
	"github.com/MissionForge/escrow_layer/internal/app/services/factory"
	"github.com/MissionForge/escrow_layer/internal/app/services/feerouter"
	"github.com/MissionForge/escrow_layer/internal/app/services/guilds"
	"github.com/MissionForge/escrow_layer/internal/app/services/token"
	"github.com/MissionForge/escrow_layer/internal/app/storage/memory"
)

func addr(b byte) identity.Address {
	var a identity.Address
	a[0] = b
	return a
}

var (
	poster           = addr(1)
	performer        = addr(2)
	dao              = addr(3)
	resolverIdentity = addr(4)
	spender          = addr(5)
	routerCustody    = addr(6)
	protocolTreasury = addr(7)
	labsTreasury     = addr(8)
	resolverTreasury = addr(9)
	disputeCustody   = addr(10)
	investigator     = addr(11)
	stranger         = addr(12)
)

type fixture struct {
	bank     *token.Bank
	factory  *factory.Service
	escrow   *escrow.Service
	resolver *Service
	mission  mission.Mission
}

// newFixture wires the full settlement stack and drives one funded
// 100.000000 mission to the submitted state.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureReward(t, 100_000_000)
}

// newFixtureReward is newFixture with a caller-chosen reward.
func newFixtureReward(t *testing.T, reward int64) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	bank := token.NewBank()
	guildSvc := guilds.New(store, dao, nil, nil)
	factorySvc := factory.New(store, bank, spender, nil, nil)
	router := feerouter.New(routerCustody, feerouter.Treasuries{
		Protocol: protocolTreasury,
		Labs:     labsTreasury,
		Resolver: resolverTreasury,
	}, factorySvc, guildSvc, bank, nil)
	esc := escrow.New(store, bank, router, nil)
	esc.SetResolver(resolverIdentity)
	res := New(Config{
		Identity:         resolverIdentity,
		DAO:              dao,
		Custody:          disputeCustody,
		ProtocolTreasury: protocolTreasury,
	}, store, store, esc, bank, nil)

	if err := bank.Mint(ctx, poster, reward); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := bank.Approve(ctx, poster, spender, reward); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	m, err := factorySvc.CreateMission(ctx, factory.CreateParams{
		Poster:       poster,
		Reward:       reward,
		Duration:     24 * time.Hour,
		MetadataHash: "meta",
	})
	if err != nil {
		t.Fatalf("CreateMission failed: %v", err)
	}
	if _, err := esc.Accept(ctx, performer, m.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	m, err = esc.SubmitProof(ctx, performer, m.ID, "proof")
	if err != nil {
		t.Fatalf("SubmitProof failed: %v", err)
	}

	return &fixture{bank: bank, factory: factorySvc, escrow: esc, resolver: res, mission: m}
}

func (f *fixture) balance(t *testing.T, a identity.Address) int64 {
	t.Helper()
	b, err := f.bank.BalanceOf(context.Background(), a)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	return b
}

func (f *fixture) fund(t *testing.T, a identity.Address, amount int64) {
	t.Helper()
	if err := f.bank.Mint(context.Background(), a, amount); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
}

// pastAppealWindow moves both clocks beyond the appeal deadline.
func (f *fixture) pastAppealWindow() {
	later := func() time.Time { return time.Now().Add(dispute.AppealWindow + time.Hour) }
	f.resolver.SetClock(later)
	f.escrow.SetClock(later)
}

func TestCreateDispute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)

	if _, err := f.resolver.CreateDispute(ctx, stranger, f.mission.ID); !errors.Is(err, ErrNotParty) {
		t.Errorf("stranger err = %v, want ErrNotParty", err)
	}

	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if d.State != dispute.StatePending {
		t.Errorf("state = %s, want pending", d.State)
	}
	if d.DDRAmount != 5_000_000 {
		t.Errorf("ddr = %d, want 5000000 (5%% of reward)", d.DDRAmount)
	}
	if d.LPPAmount != 2_000_000 {
		t.Errorf("lpp = %d, want 2000000 (2%% of reward)", d.LPPAmount)
	}
	if !d.PerformerDeposited || d.PosterDeposited {
		t.Errorf("initiator deposit flags wrong: %+v", d)
	}
	if got := f.balance(t, disputeCustody); got != 5_000_000 {
		t.Errorf("custody balance = %d, want 5000000", got)
	}

	m, err := f.escrow.Get(ctx, f.mission.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.State != mission.StateDisputed || m.DisputeID != d.ID {
		t.Errorf("mission not flipped to disputed: %+v", m)
	}

	f.fund(t, poster, 5_000_000)
	if _, err := f.resolver.CreateDispute(ctx, poster, f.mission.ID); !errors.Is(err, ErrDisputeActive) {
		t.Errorf("duplicate err = %v, want ErrDisputeActive", err)
	}
}

func TestCreateDisputeWithoutDepositFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The initiator cannot fund the reserve, so no dispute record may exist
	// and the mission must stay submitted.
	if _, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID); err == nil {
		t.Fatal("CreateDispute succeeded without deposit funds")
	}
	m, err := f.escrow.Get(ctx, f.mission.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.State != mission.StateSubmitted {
		t.Errorf("mission state = %s, want submitted", m.State)
	}
}

func TestSubmitEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	f.fund(t, poster, 5_000_000)

	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}

	if _, err := f.resolver.SubmitEvidence(ctx, performer, d.ID, ""); !errors.Is(err, ErrEvidenceRequired) {
		t.Errorf("empty hash err = %v, want ErrEvidenceRequired", err)
	}
	if _, err := f.resolver.SubmitEvidence(ctx, stranger, d.ID, "ev"); !errors.Is(err, ErrNotParty) {
		t.Errorf("stranger err = %v, want ErrNotParty", err)
	}

	if _, err := f.resolver.SubmitEvidence(ctx, performer, d.ID, "performer-ev"); err != nil {
		t.Fatalf("performer evidence failed: %v", err)
	}
	if _, err := f.resolver.SubmitEvidence(ctx, performer, d.ID, "again"); !errors.Is(err, ErrEvidenceSubmitted) {
		t.Errorf("second submission err = %v, want ErrEvidenceSubmitted", err)
	}

	// Poster has not deposited yet; their evidence call collects the reserve.
	updated, err := f.resolver.SubmitEvidence(ctx, poster, d.ID, "poster-ev")
	if err != nil {
		t.Fatalf("poster evidence failed: %v", err)
	}
	if !updated.PosterDeposited {
		t.Error("poster deposit not collected with evidence")
	}
	if got := f.balance(t, disputeCustody); got != 10_000_000 {
		t.Errorf("custody balance = %d, want 10000000", got)
	}
}

func TestAssignResolver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}

	if _, err := f.resolver.AssignResolver(ctx, stranger, d.ID, investigator); !errors.Is(err, ErrNotDAO) {
		t.Errorf("non-DAO err = %v, want ErrNotDAO", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, identity.Zero); !errors.Is(err, ErrZeroResolver) {
		t.Errorf("zero investigator err = %v, want ErrZeroResolver", err)
	}

	updated, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator)
	if err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if updated.State != dispute.StateInvestigating || updated.Resolver != investigator {
		t.Errorf("assignment not recorded: %+v", updated)
	}

	var stateErr *dispute.StateError
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, stranger); !errors.As(err, &stateErr) {
		t.Errorf("reassign err = %v, want StateError", err)
	}
}

func TestResolveDepositGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}

	// Poster never deposited: poster cannot be declared winner, and pooled
	// outcomes need both reserves.
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePosterWins, 0, "h"); !errors.Is(err, ErrWinnerNotDeposited) {
		t.Errorf("poster wins err = %v, want ErrWinnerNotDeposited", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomeSplit, 5000, "h"); !errors.Is(err, ErrDepositsRequired) {
		t.Errorf("split err = %v, want ErrDepositsRequired", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomeCancelled, 0, "h"); !errors.Is(err, ErrDepositsRequired) {
		t.Errorf("cancelled err = %v, want ErrDepositsRequired", err)
	}

	// The depositing performer can still win.
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePerformerWins, 0, "h"); err != nil {
		t.Fatalf("performer wins failed: %v", err)
	}
}

func TestResolveGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}

	var stateErr *dispute.StateError
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePerformerWins, 0, "h"); !errors.As(err, &stateErr) {
		t.Errorf("resolve pending err = %v, want StateError", err)
	}

	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, stranger, d.ID, dispute.OutcomePerformerWins, 0, "h"); !errors.Is(err, ErrNotAssignedResolver) {
		t.Errorf("wrong resolver err = %v, want ErrNotAssignedResolver", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomeNone, 0, "h"); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("invalid outcome err = %v, want ErrInvalidOutcome", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomeSplit, -1, "h"); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("invalid split err = %v, want ErrInvalidSplit", err)
	}
}

func TestFinalizePerformerWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePerformerWins, 0, "h"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, err := f.resolver.Finalize(ctx, d.ID); !errors.Is(err, ErrAppealWindowOpen) {
		t.Fatalf("early finalize err = %v, want ErrAppealWindowOpen", err)
	}

	f.pastAppealWindow()
	final, err := f.resolver.Finalize(ctx, d.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if final.State != dispute.StateFinalized {
		t.Errorf("state = %s, want finalized", final.State)
	}

	// Escrow: 100.000000 routed through the fee table nets the performer
	// 90.000000. Pool of 5.000000: 10% to the investigator, 5% to the
	// protocol, remainder returns to the winner.
	if got := f.balance(t, performer); got != 94_250_000 {
		t.Errorf("performer balance = %d, want 94250000", got)
	}
	if got := f.balance(t, investigator); got != 500_000 {
		t.Errorf("investigator fee = %d, want 500000", got)
	}
	if got := f.balance(t, protocolTreasury); got != 4_250_000 {
		t.Errorf("protocol treasury = %d, want 4250000 (fee leg + pool skim)", got)
	}
	if got := f.balance(t, disputeCustody); got != 0 {
		t.Errorf("custody residue = %d, want 0", got)
	}
}

func TestFinalizeSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, poster, 5_000_000)
	f.fund(t, performer, 5_000_000)

	d, err := f.resolver.CreateDispute(ctx, poster, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.SubmitEvidence(ctx, performer, d.ID, "performer-ev"); err != nil {
		t.Fatalf("SubmitEvidence failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomeSplit, 5000, "h"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	f.pastAppealWindow()
	if _, err := f.resolver.Finalize(ctx, d.ID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// Escrow: performer's 50.000000 routes through fees to 45.000000, the
	// poster's 50.000000 refunds directly. Pool of 10.000000 skims 1.500000
	// in fees and splits the remaining 8.500000 by the same ratio.
	if got := f.balance(t, performer); got != 49_250_000 {
		t.Errorf("performer balance = %d, want 49250000", got)
	}
	if got := f.balance(t, poster); got != 54_250_000 {
		t.Errorf("poster balance = %d, want 54250000", got)
	}
	if got := f.balance(t, disputeCustody); got != 0 {
		t.Errorf("custody residue = %d, want 0", got)
	}
}

func TestFinalizeCancelledLargeReward(t *testing.T) {
	ctx := context.Background()
	f := newFixtureReward(t, 10_000_000_000_000) // 10,000,000.000000
	const ddr = 500_000_000_000
	f.fund(t, poster, ddr)
	f.fund(t, performer, ddr)

	d, err := f.resolver.CreateDispute(ctx, poster, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.SubmitEvidence(ctx, performer, d.ID, "performer-ev"); err != nil {
		t.Fatalf("SubmitEvidence failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomeCancelled, 0, "h"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	f.pastAppealWindow()
	if _, err := f.resolver.Finalize(ctx, d.ID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// Cancellation refunds the poster's 10,000,000.000000 in full. The
	// 1,000.000000 pool skims the investigator and protocol fees and returns
	// the 850.000000 remainder evenly to the two depositors. The shares must
	// hold at this scale, where a reward-weighted intermediate product would
	// wrap int64.
	if got := f.balance(t, poster); got != 10_425_000_000_000 {
		t.Errorf("poster balance = %d, want 10425000000000", got)
	}
	if got := f.balance(t, performer); got != 425_000_000_000 {
		t.Errorf("performer balance = %d, want 425000000000", got)
	}
	if got := f.balance(t, investigator); got != 100_000_000_000 {
		t.Errorf("investigator fee = %d, want 100000000000", got)
	}
	if got := f.balance(t, protocolTreasury); got != 50_000_000_000 {
		t.Errorf("protocol treasury = %d, want 50000000000", got)
	}
	if got := f.balance(t, disputeCustody); got != 0 {
		t.Errorf("custody residue = %d, want 0", got)
	}
}

func TestCreateDisputeAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, poster, 5_000_000)

	// Proof landed before the deadline. The deadline passing afterwards
	// neither unlocks the expiry claim nor closes the dispute path.
	later := func() time.Time { return time.Now().Add(25 * time.Hour) }
	f.escrow.SetClock(later)
	f.resolver.SetClock(later)

	var stateErr *mission.StateError
	if _, err := f.escrow.ClaimExpired(ctx, poster, f.mission.ID); !errors.As(err, &stateErr) {
		t.Fatalf("ClaimExpired on submitted work err = %v, want StateError", err)
	}

	d, err := f.resolver.CreateDispute(ctx, poster, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute after deadline failed: %v", err)
	}
	if d.State != dispute.StatePending {
		t.Errorf("state = %s, want pending", d.State)
	}
}

func TestAppealBlocksFinalize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePerformerWins, 0, "h"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, err := f.resolver.Appeal(ctx, stranger, d.ID); !errors.Is(err, ErrNotParty) {
		t.Errorf("stranger appeal err = %v, want ErrNotParty", err)
	}
	if _, err := f.resolver.Appeal(ctx, poster, d.ID); err != nil {
		t.Fatalf("Appeal failed: %v", err)
	}

	// Once appealed, the timed path is closed for good; only a DAO override
	// can conclude the dispute.
	f.pastAppealWindow()
	var stateErr *dispute.StateError
	if _, err := f.resolver.Finalize(ctx, d.ID); !errors.As(err, &stateErr) {
		t.Fatalf("finalize appealed err = %v, want StateError", err)
	}
}

func TestAppealWindowCloses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePerformerWins, 0, "h"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	f.pastAppealWindow()
	if _, err := f.resolver.Appeal(ctx, poster, d.ID); !errors.Is(err, ErrAppealWindowClosed) {
		t.Fatalf("late appeal err = %v, want ErrAppealWindowClosed", err)
	}
}

func TestOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, performer, 5_000_000)
	d, err := f.resolver.CreateDispute(ctx, performer, f.mission.ID)
	if err != nil {
		t.Fatalf("CreateDispute failed: %v", err)
	}
	if _, err := f.resolver.AssignResolver(ctx, dao, d.ID, investigator); err != nil {
		t.Fatalf("AssignResolver failed: %v", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePosterWins, 0, "h"); !errors.Is(err, ErrWinnerNotDeposited) {
		t.Fatalf("resolve err = %v, want ErrWinnerNotDeposited", err)
	}
	if _, err := f.resolver.Resolve(ctx, investigator, d.ID, dispute.OutcomePerformerWins, 0, "h"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var stateErr *dispute.StateError
	if _, err := f.resolver.Override(ctx, dao, d.ID, dispute.OutcomePerformerWins, 0, "h2"); !errors.As(err, &stateErr) {
		t.Errorf("override before appeal err = %v, want StateError", err)
	}

	if _, err := f.resolver.Appeal(ctx, performer, d.ID); err != nil {
		t.Fatalf("Appeal failed: %v", err)
	}
	if _, err := f.resolver.Override(ctx, stranger, d.ID, dispute.OutcomePerformerWins, 0, "h2"); !errors.Is(err, ErrNotDAO) {
		t.Errorf("non-DAO override err = %v, want ErrNotDAO", err)
	}

	final, err := f.resolver.Override(ctx, dao, d.ID, dispute.OutcomePerformerWins, 0, "h2")
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if final.State != dispute.StateFinalized || final.Outcome != dispute.OutcomePerformerWins {
		t.Errorf("override result: %+v", final)
	}
	if got := f.balance(t, performer); got != 94_250_000 {
		t.Errorf("performer balance = %d, want 94250000", got)
	}
}

func TestCreateDisputeRequiresSubmittedWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A second mission that stays open.
	if err := f.bank.Mint(ctx, poster, 100_000_000); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := f.bank.Approve(ctx, poster, spender, 100_000_000); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	open, err := f.factory.CreateMission(ctx, factory.CreateParams{
		Poster:   poster,
		Reward:   100_000_000,
		Duration: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateMission failed: %v", err)
	}

	f.fund(t, poster, 5_000_000)
	var stateErr *mission.StateError
	if _, err := f.resolver.CreateDispute(ctx, poster, open.ID); !errors.As(err, &stateErr) {
		t.Fatalf("dispute on open mission err = %v, want StateError", err)
	}
}
