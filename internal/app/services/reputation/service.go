// Package reputation keeps authorization-gated outcome counters per address.
// Recording is best-effort telemetry for the escrow: the caller treats
// failures as non-fatal.
package reputation

import (
	"context"
	"errors"
	"fmt"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/reputation"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

// ErrNotAuthorized rejects outcome reports from anything but the escrow
// service's identity.
var ErrNotAuthorized = errors.New("reputation: caller is not authorized to record outcomes")

// Service is the reputation ledger.
type Service struct {
	store      storage.ReputationStore
	authorized identity.Address
	log        *logger.Logger
}

// New constructs the ledger. Only the authorized identity may record.
func New(store storage.ReputationStore, authorized identity.Address, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reputation")
	}
	return &Service{store: store, authorized: authorized, log: log}
}

// Record applies a mission outcome to both parties' counters on behalf of an
// authenticated caller.
func (s *Service) Record(ctx context.Context, caller identity.Address, missionID uint64, poster, performer identity.Address, completed bool, reward int64) error {
	if caller != s.authorized {
		return ErrNotAuthorized
	}
	return s.apply(ctx, missionID, poster, performer, completed, reward)
}

// RecordOutcome satisfies the escrow's reputation sink. The escrow holds the
// service reference directly, so the call is pre-authenticated by wiring.
func (s *Service) RecordOutcome(ctx context.Context, missionID uint64, poster, performer identity.Address, completed bool, reward int64) error {
	return s.apply(ctx, missionID, poster, performer, completed, reward)
}

func (s *Service) apply(ctx context.Context, missionID uint64, poster, performer identity.Address, completed bool, reward int64) error {
	if err := s.bump(ctx, poster, func(rec *reputation.Record) {
		rec.MissionsPosted++
		if completed {
			rec.VolumeSpent += reward
		}
	}); err != nil {
		return fmt.Errorf("reputation: poster record for mission %d: %w", missionID, err)
	}
	if performer.IsZero() {
		return nil
	}
	return s.bump(ctx, performer, func(rec *reputation.Record) {
		if completed {
			rec.MissionsPerformed++
			rec.VolumeEarned += reward
		} else {
			rec.MissionsFailed++
		}
	})
}

// Get returns the record for an address. Unknown addresses return an empty
// record rather than an error.
func (s *Service) Get(ctx context.Context, addr identity.Address) (reputation.Record, error) {
	rec, err := s.store.GetReputation(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return reputation.Record{Address: addr}, nil
	}
	return rec, err
}

func (s *Service) bump(ctx context.Context, addr identity.Address, mutate func(*reputation.Record)) error {
	rec, err := s.store.GetReputation(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		rec = reputation.Record{Address: addr}
	} else if err != nil {
		return err
	}
	mutate(&rec)
	_, err = s.store.UpsertReputation(ctx, rec)
	return err
}
