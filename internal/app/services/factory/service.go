// Package factory creates funded mission escrows and owns the mission
// registry used to authenticate escrow identities.
package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/events"
	"github.com/MissionForge/escrow_layer/internal/app/metrics"
	"github.com/MissionForge/escrow_layer/internal/app/services/token"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

var ErrZeroPoster = errors.New("factory: poster address must not be zero")

// Service validates mission parameters, pulls funding in, and registers the
// mission's escrow identity.
type Service struct {
	missions MissionStore
	ledger   token.Ledger
	spender  identity.Address
	bus      *events.Bus
	log      *logger.Logger
}

// MissionStore is the subset of storage the factory needs.
type MissionStore interface {
	NextMissionID(ctx context.Context) (uint64, error)
	CreateMission(ctx context.Context, m mission.Mission) (mission.Mission, error)
	GetMission(ctx context.Context, id uint64) (mission.Mission, error)
	ListMissions(ctx context.Context) ([]mission.Mission, error)
	ListMissionsByPoster(ctx context.Context, poster identity.Address) ([]mission.Mission, error)
}

// New constructs the factory. The spender address is the identity the poster
// grants a token allowance to; the factory pulls mission funding through it.
func New(missions MissionStore, ledger token.Ledger, spender identity.Address, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("factory")
	}
	return &Service{missions: missions, ledger: ledger, spender: spender, bus: bus, log: log}
}

// CreateParams are the caller-supplied mission parameters.
type CreateParams struct {
	Poster       identity.Address
	Reward       int64
	Duration     time.Duration
	Guild        identity.Address
	MetadataHash string
	LocationHash string
}

// CreateMission validates bounds, moves the reward from the poster into the
// mission's escrow address, and registers the mission. Funding is pulled
// before the record exists, so a failed transfer leaves no trace.
func (s *Service) CreateMission(ctx context.Context, p CreateParams) (mission.Mission, error) {
	if p.Poster.IsZero() {
		return mission.Mission{}, ErrZeroPoster
	}
	if p.Reward < mission.MinReward || p.Reward > mission.MaxReward {
		return mission.Mission{}, &mission.BoundsError{Field: "reward", Value: p.Reward}
	}
	if p.Duration < mission.MinDuration || p.Duration > mission.MaxDuration {
		return mission.Mission{}, &mission.BoundsError{Field: "duration", Value: int64(p.Duration)}
	}

	id, err := s.missions.NextMissionID(ctx)
	if err != nil {
		return mission.Mission{}, fmt.Errorf("factory: allocate mission id: %w", err)
	}
	escrowAddr := identity.EscrowAddress(id)

	if err := s.ledger.TransferFrom(ctx, s.spender, p.Poster, escrowAddr, p.Reward); err != nil {
		return mission.Mission{}, fmt.Errorf("factory: fund mission %d: %w", id, err)
	}

	now := time.Now().UTC()
	m := mission.Mission{
		ID:           id,
		Poster:       p.Poster,
		Escrow:       escrowAddr,
		Guild:        p.Guild,
		Reward:       p.Reward,
		MetadataHash: p.MetadataHash,
		LocationHash: p.LocationHash,
		State:        mission.StateOpen,
		CreatedAt:    now,
		ExpiresAt:    now.Add(p.Duration),
	}
	created, err := s.missions.CreateMission(ctx, m)
	if err != nil {
		// The funding transfer already happened; hand it back rather than
		// strand it under an unregistered escrow address.
		if refundErr := s.ledger.Transfer(ctx, escrowAddr, p.Poster, p.Reward); refundErr != nil {
			s.log.WithError(refundErr).Errorf("refund after failed registration of mission %d", id)
		}
		return mission.Mission{}, fmt.Errorf("factory: register mission %d: %w", id, err)
	}

	metrics.RecordMissionTransition(string(mission.StateOpen))
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TypeMissionCreated, MissionID: created.ID})
	}
	s.log.WithField("mission_id", created.ID).
		Infof("mission created, reward %d micro-units, expires %s", created.Reward, created.ExpiresAt.Format(time.RFC3339))
	return created, nil
}

// EscrowAddress returns the registered escrow identity for a mission. The
// fee router and dispute resolver authenticate callers against it.
func (s *Service) EscrowAddress(ctx context.Context, missionID uint64) (identity.Address, error) {
	m, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return identity.Zero, err
	}
	return m.Escrow, nil
}

// Get returns a mission record.
func (s *Service) Get(ctx context.Context, id uint64) (mission.Mission, error) {
	return s.missions.GetMission(ctx, id)
}

// List returns all missions.
func (s *Service) List(ctx context.Context) ([]mission.Mission, error) {
	return s.missions.ListMissions(ctx)
}

// ListByPoster returns the missions created by one poster.
func (s *Service) ListByPoster(ctx context.Context, poster identity.Address) ([]mission.Mission, error) {
	return s.missions.ListMissionsByPoster(ctx, poster)
}
