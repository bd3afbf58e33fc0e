package guilds

import (
	"context"
	"errors"
	"testing"

	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/storage/memory"
)

func addr(b byte) identity.Address {
	var a identity.Address
	a[0] = b
	return a
}

var (
	dao           = addr(1)
	guildAddr     = addr(2)
	guildTreasury = addr(3)
	stranger      = addr(4)
)

func newService() *Service {
	return New(memory.New(), dao, nil, nil)
}

func TestRegisterDAOOnly(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	g := guild.Guild{Address: guildAddr, Name: "Forge Collective", FeeBps: 500}
	if _, err := svc.Register(ctx, stranger, g); !errors.Is(err, ErrNotDAO) {
		t.Fatalf("err = %v, want ErrNotDAO", err)
	}
	if _, err := svc.Register(ctx, dao, g); err != nil {
		t.Fatalf("DAO registration failed: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	cases := []struct {
		name string
		g    guild.Guild
		want error
	}{
		{"zero address", guild.Guild{Name: "x", FeeBps: 100}, ErrZeroGuild},
		{"missing name", guild.Guild{Address: guildAddr, FeeBps: 100}, ErrNameRequired},
		{"fee above cap", guild.Guild{Address: guildAddr, Name: "x", FeeBps: guild.MaxRegistryFeeBps + 1}, ErrFeeAboveCap},
		{"negative fee", guild.Guild{Address: guildAddr, Name: "x", FeeBps: -1}, ErrFeeAboveCap},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, dao, tc.g); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRegisterUpdatesExistingGuild(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	if _, err := svc.Register(ctx, dao, guild.Guild{Address: guildAddr, Name: "Forge Collective", FeeBps: 500}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	updated, err := svc.Register(ctx, dao, guild.Guild{Address: guildAddr, Name: "Forge Collective", FeeBps: 750})
	if err != nil {
		t.Fatalf("Register update failed: %v", err)
	}
	if updated.FeeBps != 750 {
		t.Errorf("fee = %d, want 750", updated.FeeBps)
	}

	bps, err := svc.FeeBps(ctx, guildAddr)
	if err != nil {
		t.Fatalf("FeeBps failed: %v", err)
	}
	if bps != 750 {
		t.Errorf("FeeBps = %d, want 750", bps)
	}
}

func TestFeeBpsUnknownGuild(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	bps, err := svc.FeeBps(ctx, guildAddr)
	if err != nil {
		t.Fatalf("FeeBps failed: %v", err)
	}
	if bps != 0 {
		t.Errorf("unregistered guild fee = %d, want 0", bps)
	}
	bps, err = svc.FeeBps(ctx, identity.Zero)
	if err != nil {
		t.Fatalf("FeeBps failed: %v", err)
	}
	if bps != 0 {
		t.Errorf("zero-address fee = %d, want 0", bps)
	}
}

func TestPayoutAddress(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	if _, err := svc.Register(ctx, dao, guild.Guild{
		Address:  guildAddr,
		Treasury: guildTreasury,
		Name:     "Forge Collective",
		FeeBps:   500,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := svc.PayoutAddress(ctx, guildAddr); got != guildTreasury {
		t.Errorf("payout = %s, want treasury", got)
	}

	// Without a treasury the guild identity itself is paid; an unknown guild
	// falls back the same way.
	noTreasury := addr(5)
	if _, err := svc.Register(ctx, dao, guild.Guild{Address: noTreasury, Name: "Solo", FeeBps: 100}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := svc.PayoutAddress(ctx, noTreasury); got != noTreasury {
		t.Errorf("payout = %s, want guild identity", got)
	}
	if got := svc.PayoutAddress(ctx, stranger); got != stranger {
		t.Errorf("payout = %s, want fallback to input", got)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	for i, name := range []string{"Bravo", "Alpha"} {
		if _, err := svc.Register(ctx, dao, guild.Guild{Address: addr(byte(10 + i)), Name: name, FeeBps: 100}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[0].Name != "Alpha" || all[1].Name != "Bravo" {
		t.Errorf("guilds not sorted by name: %s, %s", all[0].Name, all[1].Name)
	}
}
