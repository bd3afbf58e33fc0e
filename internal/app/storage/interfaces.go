// Package storage declares the persistence interfaces consumed by the
// protocol services. Implementations live in the memory and postgres
// subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/MissionForge/escrow_layer/internal/app/domain/achievement"
	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/domain/reputation"
)

// ErrNotFound is returned by every store when the requested record does not
// exist.
var ErrNotFound = errors.New("storage: not found")

// MissionStore persists mission records. It doubles as the mission registry:
// the escrow address recorded at creation authenticates callers claiming to
// act for a mission.
type MissionStore interface {
	NextMissionID(ctx context.Context) (uint64, error)
	CreateMission(ctx context.Context, m mission.Mission) (mission.Mission, error)
	UpdateMission(ctx context.Context, m mission.Mission) (mission.Mission, error)
	GetMission(ctx context.Context, id uint64) (mission.Mission, error)
	ListMissions(ctx context.Context) ([]mission.Mission, error)
	ListMissionsByPoster(ctx context.Context, poster identity.Address) ([]mission.Mission, error)
}

// DisputeStore persists dispute records.
type DisputeStore interface {
	NextDisputeID(ctx context.Context) (uint64, error)
	CreateDispute(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error)
	UpdateDispute(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error)
	GetDispute(ctx context.Context, id uint64) (dispute.Dispute, error)
	GetActiveDisputeByMission(ctx context.Context, missionID uint64) (dispute.Dispute, error)
	ListDisputesByState(ctx context.Context, state dispute.State) ([]dispute.Dispute, error)
}

// GuildStore persists guild registrations.
type GuildStore interface {
	UpsertGuild(ctx context.Context, g guild.Guild) (guild.Guild, error)
	GetGuild(ctx context.Context, addr identity.Address) (guild.Guild, error)
	ListGuilds(ctx context.Context) ([]guild.Guild, error)
}

// ReputationStore persists per-address outcome counters.
type ReputationStore interface {
	GetReputation(ctx context.Context, addr identity.Address) (reputation.Record, error)
	UpsertReputation(ctx context.Context, rec reputation.Record) (reputation.Record, error)
}

// AchievementStore persists badges and awards.
type AchievementStore interface {
	CreateBadge(ctx context.Context, b achievement.Badge) (achievement.Badge, error)
	UpdateBadge(ctx context.Context, b achievement.Badge) (achievement.Badge, error)
	GetBadge(ctx context.Context, id string) (achievement.Badge, error)
	ListBadges(ctx context.Context) ([]achievement.Badge, error)

	CreateAward(ctx context.Context, a achievement.Award) (achievement.Award, error)
	HasAward(ctx context.Context, badgeID string, owner identity.Address) (bool, error)
	ListAwardsByOwner(ctx context.Context, owner identity.Address) ([]achievement.Award, error)
}
