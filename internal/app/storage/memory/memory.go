// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/achievement"
	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/domain/reputation"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu            sync.RWMutex
	nextMissionID uint64
	nextDisputeID uint64
	missions      map[uint64]mission.Mission
	disputes      map[uint64]dispute.Dispute
	guilds        map[identity.Address]guild.Guild
	reputations   map[identity.Address]reputation.Record
	badges        map[string]achievement.Badge
	awards        map[string][]achievement.Award // badgeID -> awards
}

var _ storage.MissionStore = (*Store)(nil)
var _ storage.DisputeStore = (*Store)(nil)
var _ storage.GuildStore = (*Store)(nil)
var _ storage.ReputationStore = (*Store)(nil)
var _ storage.AchievementStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextMissionID: 1,
		nextDisputeID: 1,
		missions:      make(map[uint64]mission.Mission),
		disputes:      make(map[uint64]dispute.Dispute),
		guilds:        make(map[identity.Address]guild.Guild),
		reputations:   make(map[identity.Address]reputation.Record),
		badges:        make(map[string]achievement.Badge),
		awards:        make(map[string][]achievement.Award),
	}
}

// MissionStore implementation -------------------------------------------------

func (s *Store) NextMissionID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextMissionID
	s.nextMissionID++
	return id, nil
}

func (s *Store) CreateMission(_ context.Context, m mission.Mission) (mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == 0 {
		m.ID = s.nextMissionID
		s.nextMissionID++
	} else if _, exists := s.missions[m.ID]; exists {
		return mission.Mission{}, fmt.Errorf("memory: mission %d already exists", m.ID)
	}
	if m.ID >= s.nextMissionID {
		s.nextMissionID = m.ID + 1
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.missions[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMission(_ context.Context, m mission.Mission) (mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.missions[m.ID]; !exists {
		return mission.Mission{}, storage.ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	s.missions[m.ID] = m
	return m, nil
}

func (s *Store) GetMission(_ context.Context, id uint64) (mission.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.missions[id]
	if !ok {
		return mission.Mission{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMissions(_ context.Context) ([]mission.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mission.Mission, 0, len(s.missions))
	for _, m := range s.missions {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListMissionsByPoster(_ context.Context, poster identity.Address) ([]mission.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mission.Mission, 0, 8)
	for _, m := range s.missions {
		if m.Poster == poster {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DisputeStore implementation -------------------------------------------------

func (s *Store) NextDisputeID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextDisputeID
	s.nextDisputeID++
	return id, nil
}

func (s *Store) CreateDispute(_ context.Context, d dispute.Dispute) (dispute.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == 0 {
		d.ID = s.nextDisputeID
		s.nextDisputeID++
	} else if _, exists := s.disputes[d.ID]; exists {
		return dispute.Dispute{}, fmt.Errorf("memory: dispute %d already exists", d.ID)
	}
	if d.ID >= s.nextDisputeID {
		s.nextDisputeID = d.ID + 1
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.disputes[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDispute(_ context.Context, d dispute.Dispute) (dispute.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.disputes[d.ID]; !exists {
		return dispute.Dispute{}, storage.ErrNotFound
	}
	s.disputes[d.ID] = d
	return d, nil
}

func (s *Store) GetDispute(_ context.Context, id uint64) (dispute.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disputes[id]
	if !ok {
		return dispute.Dispute{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) GetActiveDisputeByMission(_ context.Context, missionID uint64) (dispute.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.disputes {
		if d.MissionID == missionID && d.State != dispute.StateFinalized {
			return d, nil
		}
	}
	return dispute.Dispute{}, storage.ErrNotFound
}

func (s *Store) ListDisputesByState(_ context.Context, state dispute.State) ([]dispute.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]dispute.Dispute, 0, 8)
	for _, d := range s.disputes {
		if d.State == state {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GuildStore implementation ---------------------------------------------------

func (s *Store) UpsertGuild(_ context.Context, g guild.Guild) (guild.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.guilds[g.Address]; ok {
		g.RegisteredAt = existing.RegisteredAt
	} else if g.RegisteredAt.IsZero() {
		g.RegisteredAt = now
	}
	g.UpdatedAt = now
	s.guilds[g.Address] = g
	return g, nil
}

func (s *Store) GetGuild(_ context.Context, addr identity.Address) (guild.Guild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[addr]
	if !ok {
		return guild.Guild{}, storage.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGuilds(_ context.Context) ([]guild.Guild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]guild.Guild, 0, len(s.guilds))
	for _, g := range s.guilds {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReputationStore implementation ----------------------------------------------

func (s *Store) GetReputation(_ context.Context, addr identity.Address) (reputation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.reputations[addr]
	if !ok {
		return reputation.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) UpsertReputation(_ context.Context, rec reputation.Record) (reputation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = time.Now().UTC()
	s.reputations[rec.Address] = rec
	return rec, nil
}

// AchievementStore implementation ---------------------------------------------

func (s *Store) CreateBadge(_ context.Context, b achievement.Badge) (achievement.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	} else if _, exists := s.badges[b.ID]; exists {
		return achievement.Badge{}, fmt.Errorf("memory: badge %s already exists", b.ID)
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.badges[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBadge(_ context.Context, b achievement.Badge) (achievement.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.badges[b.ID]; !exists {
		return achievement.Badge{}, storage.ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	s.badges[b.ID] = b
	return b, nil
}

func (s *Store) GetBadge(_ context.Context, id string) (achievement.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.badges[id]
	if !ok {
		return achievement.Badge{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBadges(_ context.Context) ([]achievement.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]achievement.Badge, 0, len(s.badges))
	for _, b := range s.badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateAward(_ context.Context, a achievement.Award) (achievement.Award, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for _, existing := range s.awards[a.BadgeID] {
		if existing.Owner == a.Owner {
			return achievement.Award{}, fmt.Errorf("memory: owner %s already holds badge %s", a.Owner, a.BadgeID)
		}
	}
	if a.AwardedAt.IsZero() {
		a.AwardedAt = time.Now().UTC()
	}
	s.awards[a.BadgeID] = append(s.awards[a.BadgeID], a)
	return a, nil
}

func (s *Store) HasAward(_ context.Context, badgeID string, owner identity.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.awards[badgeID] {
		if a.Owner == owner {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListAwardsByOwner(_ context.Context, owner identity.Address) ([]achievement.Award, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]achievement.Award, 0, 4)
	for _, list := range s.awards {
		for _, a := range list {
			if a.Owner == owner {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AwardedAt.Before(out[j].AwardedAt) })
	return out, nil
}
