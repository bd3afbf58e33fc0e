// Package achievements keeps the badge bookkeeping awarded off mission
// completion events. It has no inbound dependency from the protocol core.
package achievements

import (
	"context"
	"errors"
	"fmt"

	"github.com/MissionForge/escrow_layer/internal/app/domain/achievement"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

var (
	ErrNotDAO          = errors.New("achievements: caller is not the protocol DAO")
	ErrBadgeIDRequired = errors.New("achievements: badge id is required")
	ErrSupplyExhausted = errors.New("achievements: badge supply cap reached")
	ErrAlreadyAwarded  = errors.New("achievements: owner already holds this badge")
	ErrBatchMismatch   = errors.New("achievements: owners and mission ids must have equal length")
)

// Service manages badges and awards.
type Service struct {
	store storage.AchievementStore
	dao   identity.Address
	log   *logger.Logger
}

// New constructs the achievement ledger.
func New(store storage.AchievementStore, dao identity.Address, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("achievements")
	}
	return &Service{store: store, dao: dao, log: log}
}

// CreateBadge defines a new badge. DAO only.
func (s *Service) CreateBadge(ctx context.Context, caller identity.Address, b achievement.Badge) (achievement.Badge, error) {
	if caller != s.dao {
		return achievement.Badge{}, ErrNotDAO
	}
	if b.ID == "" {
		return achievement.Badge{}, ErrBadgeIDRequired
	}
	b.Minted = 0
	return s.store.CreateBadge(ctx, b)
}

// Award grants a badge to one owner. DAO only.
func (s *Service) Award(ctx context.Context, caller identity.Address, badgeID string, owner identity.Address, missionID uint64) (achievement.Award, error) {
	if caller != s.dao {
		return achievement.Award{}, ErrNotDAO
	}
	awards, err := s.award(ctx, badgeID, []identity.Address{owner}, []uint64{missionID})
	if err != nil {
		return achievement.Award{}, err
	}
	return awards[0], nil
}

// AwardBatch grants a badge to many owners atomically. The supply cap is
// validated against a snapshot taken once at batch start, so a mid-batch
// side effect can never skew the cap arithmetic; every owner is checked
// before the first write.
func (s *Service) AwardBatch(ctx context.Context, caller identity.Address, badgeID string, owners []identity.Address, missionIDs []uint64) ([]achievement.Award, error) {
	if caller != s.dao {
		return nil, ErrNotDAO
	}
	return s.award(ctx, badgeID, owners, missionIDs)
}

func (s *Service) award(ctx context.Context, badgeID string, owners []identity.Address, missionIDs []uint64) ([]achievement.Award, error) {
	if len(owners) != len(missionIDs) {
		return nil, ErrBatchMismatch
	}
	if len(owners) == 0 {
		return nil, nil
	}

	badge, err := s.store.GetBadge(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	if remaining := badge.Remaining(); remaining >= 0 && int64(len(owners)) > remaining {
		return nil, ErrSupplyExhausted
	}
	for _, owner := range owners {
		held, err := s.store.HasAward(ctx, badgeID, owner)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, ErrAlreadyAwarded
		}
	}

	out := make([]achievement.Award, 0, len(owners))
	for i, owner := range owners {
		a, err := s.store.CreateAward(ctx, achievement.Award{
			BadgeID:   badgeID,
			Owner:     owner,
			MissionID: missionIDs[i],
		})
		if err != nil {
			return nil, fmt.Errorf("achievements: award %s to %s: %w", badgeID, owner, err)
		}
		out = append(out, a)
	}

	badge.Minted += int64(len(out))
	if _, err := s.store.UpdateBadge(ctx, badge); err != nil {
		return nil, fmt.Errorf("achievements: update badge %s supply: %w", badgeID, err)
	}
	return out, nil
}

// GetBadge returns a badge definition.
func (s *Service) GetBadge(ctx context.Context, id string) (achievement.Badge, error) {
	return s.store.GetBadge(ctx, id)
}

// ListBadges returns all badge definitions.
func (s *Service) ListBadges(ctx context.Context) ([]achievement.Badge, error) {
	return s.store.ListBadges(ctx)
}

// ListAwards returns the awards held by an owner.
func (s *Service) ListAwards(ctx context.Context, owner identity.Address) ([]achievement.Award, error) {
	return s.store.ListAwardsByOwner(ctx, owner)
}
