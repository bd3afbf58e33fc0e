package feerouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/services/factory"
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
	dao              = addr(1)
	poster           = addr(2)
	performer        = addr(3)
	protocolTreasury = addr(4)
	labsTreasury     = addr(5)
	resolverTreasury = addr(6)
	routerCustody    = addr(7)
	spender          = addr(8)
	guildAddr        = addr(9)
	guildTreasury    = addr(10)
)

type fixture struct {
	bank   *token.Bank
	guilds *guilds.Service
	router *Service

	missionID uint64
	escrow    identity.Address
}

// newFixture registers one funded mission and moves its reward into the
// router's custody, mirroring what the escrow service does on completion.
func newFixture(t *testing.T, reward int64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	bank := token.NewBank()
	guildSvc := guilds.New(store, dao, nil, nil)
	factorySvc := factory.New(store, bank, spender, nil, nil)
	router := New(routerCustody, Treasuries{
		Protocol: protocolTreasury,
		Labs:     labsTreasury,
		Resolver: resolverTreasury,
	}, factorySvc, guildSvc, bank, nil)

	if err := bank.Mint(ctx, poster, reward); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := bank.Approve(ctx, poster, spender, reward); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	m, err := factorySvc.CreateMission(ctx, factory.CreateParams{
		Poster:   poster,
		Reward:   reward,
		Duration: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateMission failed: %v", err)
	}
	if err := bank.Transfer(ctx, m.Escrow, routerCustody, reward); err != nil {
		t.Fatalf("custody funding failed: %v", err)
	}
	return &fixture{bank: bank, guilds: guildSvc, router: router, missionID: m.ID, escrow: m.Escrow}
}

func (f *fixture) balance(t *testing.T, a identity.Address) int64 {
	t.Helper()
	balance, err := f.bank.BalanceOf(context.Background(), a)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	return balance
}

func TestDistributePaysFixedLegs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000_000)

	split, err := f.router.Distribute(ctx, f.escrow, f.missionID, performer, 100_000_000, identity.Zero)
	if err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if split.Performer != 90_000_000 {
		t.Errorf("performer leg = %d, want 90000000", split.Performer)
	}
	if got := f.balance(t, performer); got != 90_000_000 {
		t.Errorf("performer balance = %d, want 90000000", got)
	}
	if got := f.balance(t, protocolTreasury); got != 4_000_000 {
		t.Errorf("protocol treasury = %d, want 4000000", got)
	}
	if got := f.balance(t, labsTreasury); got != 4_000_000 {
		t.Errorf("labs treasury = %d, want 4000000", got)
	}
	if got := f.balance(t, resolverTreasury); got != 2_000_000 {
		t.Errorf("resolver treasury = %d, want 2000000", got)
	}
	if got := f.balance(t, routerCustody); got != 0 {
		t.Errorf("custody balance = %d, want 0 after full distribution", got)
	}
}

func TestDistributePaysGuildLeg(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000_000)

	if _, err := f.guilds.Register(ctx, dao, guild.Guild{
		Address:  guildAddr,
		Treasury: guildTreasury,
		Name:     "Forge Collective",
		FeeBps:   1000,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := f.router.Distribute(ctx, f.escrow, f.missionID, performer, 100_000_000, guildAddr); err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if got := f.balance(t, guildTreasury); got != 10_000_000 {
		t.Errorf("guild treasury = %d, want 10000000", got)
	}
	if got := f.balance(t, guildAddr); got != 0 {
		t.Errorf("guild identity balance = %d, payout must go to the treasury", got)
	}
	if got := f.balance(t, performer); got != 80_000_000 {
		t.Errorf("performer balance = %d, want 80000000", got)
	}
}

func TestDistributeUnregisteredGuildPaysNoGuildLeg(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000_000)

	if _, err := f.router.Distribute(ctx, f.escrow, f.missionID, performer, 100_000_000, guildAddr); err != nil {
		t.Fatalf("Distribute failed: %v", err)
	}
	if got := f.balance(t, guildAddr); got != 0 {
		t.Errorf("unregistered guild got %d", got)
	}
	if got := f.balance(t, performer); got != 90_000_000 {
		t.Errorf("performer balance = %d, want 90000000", got)
	}
}

func TestDistributeRejectsUnregisteredEscrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000_000)

	_, err := f.router.Distribute(ctx, addr(42), f.missionID, performer, 100_000_000, identity.Zero)
	if !errors.Is(err, ErrUnregisteredEscrow) {
		t.Fatalf("err = %v, want ErrUnregisteredEscrow", err)
	}
	if got := f.balance(t, routerCustody); got != 100_000_000 {
		t.Errorf("custody balance = %d, rejected call must not move funds", got)
	}
}

func TestDistributeRejectsZeroPerformer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000_000)

	_, err := f.router.Distribute(ctx, f.escrow, f.missionID, identity.Zero, 100_000_000, identity.Zero)
	if !errors.Is(err, ErrZeroPerformer) {
		t.Fatalf("err = %v, want ErrZeroPerformer", err)
	}
}
