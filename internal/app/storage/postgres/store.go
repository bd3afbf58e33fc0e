// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/MissionForge/escrow_layer/internal/app/domain/achievement"
	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/domain/reputation"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Addresses are
// stored as 0x-prefixed hex text.
type Store struct {
	db *sqlx.DB
}

var _ storage.MissionStore = (*Store)(nil)
var _ storage.DisputeStore = (*Store)(nil)
var _ storage.GuildStore = (*Store)(nil)
var _ storage.ReputationStore = (*Store)(nil)
var _ storage.AchievementStore = (*Store)(nil)

// New creates a Store over an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database at dsn and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- MissionStore -----------------------------------------------------------

type missionRow struct {
	ID            uint64    `db:"id"`
	Poster        string    `db:"poster"`
	Performer     string    `db:"performer"`
	Escrow        string    `db:"escrow"`
	Guild         string    `db:"guild"`
	Reward        int64     `db:"reward"`
	MetadataHash  string    `db:"metadata_hash"`
	LocationHash  string    `db:"location_hash"`
	ProofHash     string    `db:"proof_hash"`
	State         string    `db:"state"`
	DisputeRaised bool      `db:"dispute_raised"`
	DisputeID     uint64    `db:"dispute_id"`
	CreatedAt     time.Time `db:"created_at"`
	ExpiresAt     time.Time `db:"expires_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toMissionRow(m mission.Mission) missionRow {
	return missionRow{
		ID:            m.ID,
		Poster:        m.Poster.String(),
		Performer:     m.Performer.String(),
		Escrow:        m.Escrow.String(),
		Guild:         m.Guild.String(),
		Reward:        m.Reward,
		MetadataHash:  m.MetadataHash,
		LocationHash:  m.LocationHash,
		ProofHash:     m.ProofHash,
		State:         string(m.State),
		DisputeRaised: m.DisputeRaised,
		DisputeID:     m.DisputeID,
		CreatedAt:     m.CreatedAt,
		ExpiresAt:     m.ExpiresAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r missionRow) toDomain() (mission.Mission, error) {
	m := mission.Mission{
		ID:            r.ID,
		Reward:        r.Reward,
		MetadataHash:  r.MetadataHash,
		LocationHash:  r.LocationHash,
		ProofHash:     r.ProofHash,
		State:         mission.State(r.State),
		DisputeRaised: r.DisputeRaised,
		DisputeID:     r.DisputeID,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, field := range []struct {
		dst *identity.Address
		src string
	}{
		{&m.Poster, r.Poster},
		{&m.Performer, r.Performer},
		{&m.Escrow, r.Escrow},
		{&m.Guild, r.Guild},
	} {
		addr, err := identity.Parse(field.src)
		if err != nil {
			return mission.Mission{}, err
		}
		*field.dst = addr
	}
	return m, nil
}

func (s *Store) NextMissionID(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.db.GetContext(ctx, &id, `SELECT nextval('mission_ids')`)
	return id, err
}

func (s *Store) CreateMission(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO missions (
			id, poster, performer, escrow, guild, reward,
			metadata_hash, location_hash, proof_hash, state,
			dispute_raised, dispute_id, created_at, expires_at, updated_at
		) VALUES (
			:id, :poster, :performer, :escrow, :guild, :reward,
			:metadata_hash, :location_hash, :proof_hash, :state,
			:dispute_raised, :dispute_id, :created_at, :expires_at, :updated_at
		)
	`, toMissionRow(m))
	if err != nil {
		return mission.Mission{}, err
	}
	return m, nil
}

func (s *Store) UpdateMission(ctx context.Context, m mission.Mission) (mission.Mission, error) {
	m.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE missions SET
			performer = :performer, proof_hash = :proof_hash, state = :state,
			dispute_raised = :dispute_raised, dispute_id = :dispute_id,
			updated_at = :updated_at
		WHERE id = :id
	`, toMissionRow(m))
	if err != nil {
		return mission.Mission{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return mission.Mission{}, storage.ErrNotFound
	}
	return m, nil
}

const missionColumns = `
	id, poster, performer, escrow, guild, reward,
	metadata_hash, location_hash, proof_hash, state,
	dispute_raised, dispute_id, created_at, expires_at, updated_at`

func (s *Store) GetMission(ctx context.Context, id uint64) (mission.Mission, error) {
	var row missionRow
	err := s.db.GetContext(ctx, &row, `SELECT`+missionColumns+` FROM missions WHERE id = $1`, id)
	if err != nil {
		return mission.Mission{}, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) ListMissions(ctx context.Context) ([]mission.Mission, error) {
	var rows []missionRow
	err := s.db.SelectContext(ctx, &rows, `SELECT`+missionColumns+` FROM missions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return missionsFromRows(rows)
}

func (s *Store) ListMissionsByPoster(ctx context.Context, poster identity.Address) ([]mission.Mission, error) {
	var rows []missionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT`+missionColumns+` FROM missions WHERE poster = $1 ORDER BY id`, poster.String())
	if err != nil {
		return nil, err
	}
	return missionsFromRows(rows)
}

func missionsFromRows(rows []missionRow) ([]mission.Mission, error) {
	out := make([]mission.Mission, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// --- DisputeStore -----------------------------------------------------------

type disputeRow struct {
	ID                 uint64    `db:"id"`
	MissionID          uint64    `db:"mission_id"`
	Escrow             string    `db:"escrow"`
	Poster             string    `db:"poster"`
	Performer          string    `db:"performer"`
	Initiator          string    `db:"initiator"`
	State              string    `db:"state"`
	Outcome            string    `db:"outcome"`
	Resolver           string    `db:"resolver"`
	SplitBps           int64     `db:"split_bps"`
	DDRAmount          int64     `db:"ddr_amount"`
	LPPAmount          int64     `db:"lpp_amount"`
	PosterDeposited    bool      `db:"poster_deposited"`
	PerformerDeposited bool      `db:"performer_deposited"`
	PosterEvidence     string    `db:"poster_evidence"`
	PerformerEvidence  string    `db:"performer_evidence"`
	ResolutionHash     string    `db:"resolution_hash"`
	CreatedAt          time.Time `db:"created_at"`
	ResolvedAt         time.Time `db:"resolved_at"`
	AppealDeadline     time.Time `db:"appeal_deadline"`
	FinalizedAt        time.Time `db:"finalized_at"`
}

func toDisputeRow(d dispute.Dispute) disputeRow {
	return disputeRow{
		ID:                 d.ID,
		MissionID:          d.MissionID,
		Escrow:             d.Escrow.String(),
		Poster:             d.Poster.String(),
		Performer:          d.Performer.String(),
		Initiator:          d.Initiator.String(),
		State:              string(d.State),
		Outcome:            string(d.Outcome),
		Resolver:           d.Resolver.String(),
		SplitBps:           d.SplitBps,
		DDRAmount:          d.DDRAmount,
		LPPAmount:          d.LPPAmount,
		PosterDeposited:    d.PosterDeposited,
		PerformerDeposited: d.PerformerDeposited,
		PosterEvidence:     d.PosterEvidence,
		PerformerEvidence:  d.PerformerEvidence,
		ResolutionHash:     d.ResolutionHash,
		CreatedAt:          d.CreatedAt,
		ResolvedAt:         d.ResolvedAt,
		AppealDeadline:     d.AppealDeadline,
		FinalizedAt:        d.FinalizedAt,
	}
}

func (r disputeRow) toDomain() (dispute.Dispute, error) {
	d := dispute.Dispute{
		ID:                 r.ID,
		MissionID:          r.MissionID,
		State:              dispute.State(r.State),
		Outcome:            dispute.Outcome(r.Outcome),
		SplitBps:           r.SplitBps,
		DDRAmount:          r.DDRAmount,
		LPPAmount:          r.LPPAmount,
		PosterDeposited:    r.PosterDeposited,
		PerformerDeposited: r.PerformerDeposited,
		PosterEvidence:     r.PosterEvidence,
		PerformerEvidence:  r.PerformerEvidence,
		ResolutionHash:     r.ResolutionHash,
		CreatedAt:          r.CreatedAt,
		ResolvedAt:         r.ResolvedAt,
		AppealDeadline:     r.AppealDeadline,
		FinalizedAt:        r.FinalizedAt,
	}
	for _, field := range []struct {
		dst *identity.Address
		src string
	}{
		{&d.Escrow, r.Escrow},
		{&d.Poster, r.Poster},
		{&d.Performer, r.Performer},
		{&d.Initiator, r.Initiator},
		{&d.Resolver, r.Resolver},
	} {
		addr, err := identity.Parse(field.src)
		if err != nil {
			return dispute.Dispute{}, err
		}
		*field.dst = addr
	}
	return d, nil
}

func (s *Store) NextDisputeID(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.db.GetContext(ctx, &id, `SELECT nextval('dispute_ids')`)
	return id, err
}

func (s *Store) CreateDispute(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO disputes (
			id, mission_id, escrow, poster, performer, initiator,
			state, outcome, resolver, split_bps, ddr_amount, lpp_amount,
			poster_deposited, performer_deposited, poster_evidence,
			performer_evidence, resolution_hash,
			created_at, resolved_at, appeal_deadline, finalized_at
		) VALUES (
			:id, :mission_id, :escrow, :poster, :performer, :initiator,
			:state, :outcome, :resolver, :split_bps, :ddr_amount, :lpp_amount,
			:poster_deposited, :performer_deposited, :poster_evidence,
			:performer_evidence, :resolution_hash,
			:created_at, :resolved_at, :appeal_deadline, :finalized_at
		)
	`, toDisputeRow(d))
	if err != nil {
		return dispute.Dispute{}, err
	}
	return d, nil
}

func (s *Store) UpdateDispute(ctx context.Context, d dispute.Dispute) (dispute.Dispute, error) {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE disputes SET
			state = :state, outcome = :outcome, resolver = :resolver,
			split_bps = :split_bps, poster_deposited = :poster_deposited,
			performer_deposited = :performer_deposited,
			poster_evidence = :poster_evidence,
			performer_evidence = :performer_evidence,
			resolution_hash = :resolution_hash, resolved_at = :resolved_at,
			appeal_deadline = :appeal_deadline, finalized_at = :finalized_at
		WHERE id = :id
	`, toDisputeRow(d))
	if err != nil {
		return dispute.Dispute{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return dispute.Dispute{}, storage.ErrNotFound
	}
	return d, nil
}

const disputeColumns = `
	id, mission_id, escrow, poster, performer, initiator,
	state, outcome, resolver, split_bps, ddr_amount, lpp_amount,
	poster_deposited, performer_deposited, poster_evidence,
	performer_evidence, resolution_hash,
	created_at, resolved_at, appeal_deadline, finalized_at`

func (s *Store) GetDispute(ctx context.Context, id uint64) (dispute.Dispute, error) {
	var row disputeRow
	err := s.db.GetContext(ctx, &row, `SELECT`+disputeColumns+` FROM disputes WHERE id = $1`, id)
	if err != nil {
		return dispute.Dispute{}, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) GetActiveDisputeByMission(ctx context.Context, missionID uint64) (dispute.Dispute, error) {
	var row disputeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT`+disputeColumns+` FROM disputes
		WHERE mission_id = $1 AND state <> $2
		ORDER BY id DESC LIMIT 1
	`, missionID, string(dispute.StateFinalized))
	if err != nil {
		return dispute.Dispute{}, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) ListDisputesByState(ctx context.Context, state dispute.State) ([]dispute.Dispute, error) {
	var rows []disputeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT`+disputeColumns+` FROM disputes WHERE state = $1 ORDER BY id`, string(state))
	if err != nil {
		return nil, err
	}
	out := make([]dispute.Dispute, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// --- GuildStore -------------------------------------------------------------

type guildRow struct {
	Address      string    `db:"address"`
	Treasury     string    `db:"treasury"`
	Name         string    `db:"name"`
	FeeBps       int64     `db:"fee_bps"`
	RegisteredAt time.Time `db:"registered_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r guildRow) toDomain() (guild.Guild, error) {
	addr, err := identity.Parse(r.Address)
	if err != nil {
		return guild.Guild{}, err
	}
	treasury, err := identity.Parse(r.Treasury)
	if err != nil {
		return guild.Guild{}, err
	}
	return guild.Guild{
		Address:      addr,
		Treasury:     treasury,
		Name:         r.Name,
		FeeBps:       r.FeeBps,
		RegisteredAt: r.RegisteredAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func (s *Store) UpsertGuild(ctx context.Context, g guild.Guild) (guild.Guild, error) {
	now := time.Now().UTC()
	if g.RegisteredAt.IsZero() {
		g.RegisteredAt = now
	}
	g.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO guilds (address, treasury, name, fee_bps, registered_at, updated_at)
		VALUES (:address, :treasury, :name, :fee_bps, :registered_at, :updated_at)
		ON CONFLICT (address) DO UPDATE SET
			treasury = :treasury, name = :name, fee_bps = :fee_bps,
			updated_at = :updated_at
	`, guildRow{
		Address:      g.Address.String(),
		Treasury:     g.Treasury.String(),
		Name:         g.Name,
		FeeBps:       g.FeeBps,
		RegisteredAt: g.RegisteredAt,
		UpdatedAt:    g.UpdatedAt,
	})
	if err != nil {
		return guild.Guild{}, err
	}
	return g, nil
}

func (s *Store) GetGuild(ctx context.Context, addr identity.Address) (guild.Guild, error) {
	var row guildRow
	err := s.db.GetContext(ctx, &row, `
		SELECT address, treasury, name, fee_bps, registered_at, updated_at
		FROM guilds WHERE address = $1
	`, addr.String())
	if err != nil {
		return guild.Guild{}, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) ListGuilds(ctx context.Context) ([]guild.Guild, error) {
	var rows []guildRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT address, treasury, name, fee_bps, registered_at, updated_at
		FROM guilds ORDER BY registered_at
	`)
	if err != nil {
		return nil, err
	}
	out := make([]guild.Guild, 0, len(rows))
	for _, r := range rows {
		g, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// --- ReputationStore --------------------------------------------------------

type reputationRow struct {
	Address           string    `db:"address"`
	MissionsPosted    int64     `db:"missions_posted"`
	MissionsPerformed int64     `db:"missions_performed"`
	MissionsFailed    int64     `db:"missions_failed"`
	VolumeSpent       int64     `db:"volume_spent"`
	VolumeEarned      int64     `db:"volume_earned"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (s *Store) GetReputation(ctx context.Context, addr identity.Address) (reputation.Record, error) {
	var row reputationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT address, missions_posted, missions_performed, missions_failed,
		       volume_spent, volume_earned, updated_at
		FROM reputation WHERE address = $1
	`, addr.String())
	if err != nil {
		return reputation.Record{}, notFound(err)
	}
	parsed, err := identity.Parse(row.Address)
	if err != nil {
		return reputation.Record{}, err
	}
	return reputation.Record{
		Address:           parsed,
		MissionsPosted:    row.MissionsPosted,
		MissionsPerformed: row.MissionsPerformed,
		MissionsFailed:    row.MissionsFailed,
		VolumeSpent:       row.VolumeSpent,
		VolumeEarned:      row.VolumeEarned,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func (s *Store) UpsertReputation(ctx context.Context, rec reputation.Record) (reputation.Record, error) {
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO reputation (
			address, missions_posted, missions_performed, missions_failed,
			volume_spent, volume_earned, updated_at
		) VALUES (
			:address, :missions_posted, :missions_performed, :missions_failed,
			:volume_spent, :volume_earned, :updated_at
		)
		ON CONFLICT (address) DO UPDATE SET
			missions_posted = :missions_posted,
			missions_performed = :missions_performed,
			missions_failed = :missions_failed,
			volume_spent = :volume_spent,
			volume_earned = :volume_earned,
			updated_at = :updated_at
	`, reputationRow{
		Address:           rec.Address.String(),
		MissionsPosted:    rec.MissionsPosted,
		MissionsPerformed: rec.MissionsPerformed,
		MissionsFailed:    rec.MissionsFailed,
		VolumeSpent:       rec.VolumeSpent,
		VolumeEarned:      rec.VolumeEarned,
		UpdatedAt:         rec.UpdatedAt,
	})
	if err != nil {
		return reputation.Record{}, err
	}
	return rec, nil
}

// --- AchievementStore -------------------------------------------------------

type badgeRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	SupplyCap   int64     `db:"supply_cap"`
	Minted      int64     `db:"minted"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r badgeRow) toDomain() achievement.Badge {
	return achievement.Badge{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		SupplyCap:   r.SupplyCap,
		Minted:      r.Minted,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (s *Store) CreateBadge(ctx context.Context, b achievement.Badge) (achievement.Badge, error) {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO badges (id, name, description, supply_cap, minted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.Name, b.Description, b.SupplyCap, b.Minted, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return achievement.Badge{}, err
	}
	return b, nil
}

func (s *Store) UpdateBadge(ctx context.Context, b achievement.Badge) (achievement.Badge, error) {
	b.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE badges SET name = $2, description = $3, supply_cap = $4, minted = $5, updated_at = $6
		WHERE id = $1
	`, b.ID, b.Name, b.Description, b.SupplyCap, b.Minted, b.UpdatedAt)
	if err != nil {
		return achievement.Badge{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return achievement.Badge{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) GetBadge(ctx context.Context, id string) (achievement.Badge, error) {
	var row badgeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, description, supply_cap, minted, created_at, updated_at
		FROM badges WHERE id = $1
	`, id)
	if err != nil {
		return achievement.Badge{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListBadges(ctx context.Context) ([]achievement.Badge, error) {
	var rows []badgeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, description, supply_cap, minted, created_at, updated_at
		FROM badges ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	out := make([]achievement.Badge, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateAward(ctx context.Context, a achievement.Award) (achievement.Award, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AwardedAt.IsZero() {
		a.AwardedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO awards (id, badge_id, owner, mission_id, awarded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.BadgeID, a.Owner.String(), a.MissionID, a.AwardedAt)
	if err != nil {
		return achievement.Award{}, err
	}
	return a, nil
}

func (s *Store) HasAward(ctx context.Context, badgeID string, owner identity.Address) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM awards WHERE badge_id = $1 AND owner = $2
	`, badgeID, owner.String())
	return count > 0, err
}

func (s *Store) ListAwardsByOwner(ctx context.Context, owner identity.Address) ([]achievement.Award, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, badge_id, owner, mission_id, awarded_at
		FROM awards WHERE owner = $1 ORDER BY awarded_at
	`, owner.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []achievement.Award
	for rows.Next() {
		var (
			a        achievement.Award
			ownerHex string
		)
		if err := rows.Scan(&a.ID, &a.BadgeID, &ownerHex, &a.MissionID, &a.AwardedAt); err != nil {
			return nil, err
		}
		if a.Owner, err = identity.Parse(ownerHex); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
