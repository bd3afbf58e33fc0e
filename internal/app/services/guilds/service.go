// Package guilds manages the curating-guild registry. Registration is gated
// to the protocol DAO; the fee lookup is the hot read path on every payout
// and can be fronted by a Redis cache.
package guilds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

var (
	ErrNotDAO       = errors.New("guilds: caller is not the protocol DAO")
	ErrFeeAboveCap  = fmt.Errorf("guilds: fee exceeds %d bps registry cap", guild.MaxRegistryFeeBps)
	ErrZeroGuild    = errors.New("guilds: guild address must not be zero")
	ErrNameRequired = errors.New("guilds: name is required")
)

const feeCacheTTL = 5 * time.Minute

// Service implements the guild registry.
type Service struct {
	store storage.GuildStore
	dao   identity.Address
	cache *redis.Client // optional
	log   *logger.Logger
}

// New constructs the guild registry service. The cache client may be nil.
func New(store storage.GuildStore, dao identity.Address, cache *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("guilds")
	}
	return &Service{store: store, dao: dao, cache: cache, log: log}
}

// Register creates or updates a guild entry. DAO only; the registry fee cap
// is stricter than the router's.
func (s *Service) Register(ctx context.Context, caller identity.Address, g guild.Guild) (guild.Guild, error) {
	if caller != s.dao {
		return guild.Guild{}, ErrNotDAO
	}
	if g.Address.IsZero() {
		return guild.Guild{}, ErrZeroGuild
	}
	if g.Name == "" {
		return guild.Guild{}, ErrNameRequired
	}
	if g.FeeBps < 0 || g.FeeBps > guild.MaxRegistryFeeBps {
		return guild.Guild{}, ErrFeeAboveCap
	}

	saved, err := s.store.UpsertGuild(ctx, g)
	if err != nil {
		return guild.Guild{}, fmt.Errorf("guilds: register: %w", err)
	}
	s.invalidate(ctx, g.Address)
	s.log.WithField("guild", saved.Address.String()).Infof("guild registered at %d bps", saved.FeeBps)
	return saved, nil
}

// Get returns a guild entry.
func (s *Service) Get(ctx context.Context, addr identity.Address) (guild.Guild, error) {
	return s.store.GetGuild(ctx, addr)
}

// List returns all registered guilds.
func (s *Service) List(ctx context.Context) ([]guild.Guild, error) {
	return s.store.ListGuilds(ctx)
}

// FeeBps returns the registered fee share for a guild. An unset or
// unregistered guild means no guild fee.
func (s *Service) FeeBps(ctx context.Context, addr identity.Address) (int64, error) {
	if addr.IsZero() {
		return 0, nil
	}
	if bps, ok := s.cached(ctx, addr); ok {
		return bps, nil
	}

	g, err := s.store.GetGuild(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		s.remember(ctx, addr, 0)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("guilds: fee lookup: %w", err)
	}
	s.remember(ctx, addr, g.FeeBps)
	return g.FeeBps, nil
}

// PayoutAddress resolves the payout target for a guild: its treasury when
// registered with one, the guild identity otherwise.
func (s *Service) PayoutAddress(ctx context.Context, addr identity.Address) identity.Address {
	g, err := s.store.GetGuild(ctx, addr)
	if err != nil {
		return addr
	}
	return g.PayoutAddress()
}

func feeKey(addr identity.Address) string {
	return "guild:fee:" + addr.String()
}

func (s *Service) cached(ctx context.Context, addr identity.Address) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	raw, err := s.cache.Get(ctx, feeKey(addr)).Result()
	if err != nil {
		return 0, false
	}
	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return bps, true
}

func (s *Service) remember(ctx context.Context, addr identity.Address, bps int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, feeKey(addr), strconv.FormatInt(bps, 10), feeCacheTTL).Err(); err != nil {
		s.log.WithError(err).Warn("guild fee cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, addr identity.Address) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, feeKey(addr)).Err(); err != nil {
		s.log.WithError(err).Warn("guild fee cache invalidation failed")
	}
}
