// Package feerouter distributes mission rewards across the protocol's payout
// legs. The split arithmetic lives in the fees domain package; this service
// adds custody movement and escrow-caller authentication.
package feerouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/MissionForge/escrow_layer/internal/app/domain/fees"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/metrics"
	"github.com/MissionForge/escrow_layer/internal/app/services/token"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

var (
	// ErrUnregisteredEscrow rejects a caller that is not the registered
	// escrow identity for the mission it claims to represent. Routing value
	// for unauthenticated callers is a fund-drain defect, so this check is
	// performed here, by the callee, on every call.
	ErrUnregisteredEscrow = errors.New("feerouter: caller is not the registered escrow for this mission")

	ErrZeroPerformer = errors.New("feerouter: performer address must not be zero")
)

// Registry authenticates escrow identities per mission. The mission factory
// owns the registrations.
type Registry interface {
	EscrowAddress(ctx context.Context, missionID uint64) (identity.Address, error)
}

// GuildFees resolves the variable guild fee and payout target.
type GuildFees interface {
	FeeBps(ctx context.Context, addr identity.Address) (int64, error)
	PayoutAddress(ctx context.Context, addr identity.Address) identity.Address
}

// Treasuries are the fixed payout targets of the protocol fee legs.
type Treasuries struct {
	Protocol identity.Address
	Labs     identity.Address
	Resolver identity.Address
}

// Service is the fee router. Its custody address must already hold the
// reward being distributed; that precondition belongs to the caller and is
// not re-validated here.
type Service struct {
	custody    identity.Address
	treasuries Treasuries
	registry   Registry
	guilds     GuildFees
	ledger     token.Ledger
	log        *logger.Logger
}

// New constructs the fee router.
func New(custody identity.Address, treasuries Treasuries, registry Registry, guilds GuildFees, ledger token.Ledger, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("feerouter")
	}
	return &Service{
		custody:    custody,
		treasuries: treasuries,
		registry:   registry,
		guilds:     guilds,
		ledger:     ledger,
		log:        log,
	}
}

// Custody returns the router's custody address. Callers move the reward here
// before invoking Distribute.
func (s *Service) Custody() identity.Address {
	return s.custody
}

// Distribute splits a reward and pays out all five legs, skipping zero legs.
// The caller must be the registered escrow for the mission.
func (s *Service) Distribute(ctx context.Context, caller identity.Address, missionID uint64, performer identity.Address, reward int64, guildAddr identity.Address) (fees.Split, error) {
	registered, err := s.registry.EscrowAddress(ctx, missionID)
	if err != nil {
		return fees.Split{}, fmt.Errorf("feerouter: registry lookup for mission %d: %w", missionID, err)
	}
	if caller != registered {
		return fees.Split{}, ErrUnregisteredEscrow
	}
	if performer.IsZero() {
		return fees.Split{}, ErrZeroPerformer
	}

	guildFeeBps := int64(0)
	guildPresent := !guildAddr.IsZero()
	if guildPresent {
		guildFeeBps, err = s.guilds.FeeBps(ctx, guildAddr)
		if err != nil {
			return fees.Split{}, err
		}
	}

	split, err := fees.ComputeSplit(reward, guildPresent, guildFeeBps)
	if err != nil {
		return fees.Split{}, err
	}

	legs := []struct {
		name   string
		to     identity.Address
		amount int64
	}{
		{"performer", performer, split.Performer},
		{"protocol", s.treasuries.Protocol, split.Protocol},
		{"guild", s.guildPayout(ctx, guildAddr), split.Guild},
		{"resolver", s.treasuries.Resolver, split.Resolver},
		{"labs", s.treasuries.Labs, split.Labs},
	}
	for _, leg := range legs {
		if leg.amount == 0 {
			continue
		}
		if err := s.ledger.Transfer(ctx, s.custody, leg.to, leg.amount); err != nil {
			return fees.Split{}, fmt.Errorf("feerouter: %s leg for mission %d: %w", leg.name, missionID, err)
		}
		metrics.RecordPayout(leg.name, leg.amount)
	}

	s.log.WithField("mission_id", missionID).
		Infof("distributed %d micro-units (performer %d)", reward, split.Performer)
	return split, nil
}

func (s *Service) guildPayout(ctx context.Context, guildAddr identity.Address) identity.Address {
	if guildAddr.IsZero() {
		return identity.Zero
	}
	return s.guilds.PayoutAddress(ctx, guildAddr)
}
