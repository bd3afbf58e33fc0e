package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
)

func addr(b byte) identity.Address {
	var a identity.Address
	a[0] = b
	return a
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestNextMissionID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT nextval\('mission_ids'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(7))

	id, err := store.NextMissionID(context.Background())
	if err != nil {
		t.Fatalf("NextMissionID failed: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
}

func TestCreateMission(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO missions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m, err := store.CreateMission(context.Background(), mission.Mission{
		ID:     1,
		Poster: addr(1),
		Escrow: identity.EscrowAddress(1),
		Reward: 5_000_000,
		State:  mission.StateOpen,
	})
	if err != nil {
		t.Fatalf("CreateMission failed: %v", err)
	}
	if m.UpdatedAt.IsZero() {
		t.Error("create must stamp updated_at")
	}
}

func TestGetMission(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	poster := addr(1)
	escrow := identity.EscrowAddress(1)

	mock.ExpectQuery(`SELECT .+ FROM missions WHERE id = \$1`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "poster", "performer", "escrow", "guild", "reward",
			"metadata_hash", "location_hash", "proof_hash", "state",
			"dispute_raised", "dispute_id", "created_at", "expires_at", "updated_at",
		}).AddRow(
			1, poster.String(), identity.Zero.String(), escrow.String(), identity.Zero.String(), 5_000_000,
			"meta", "", "", "open",
			false, 0, now, now.Add(24*time.Hour), now,
		))

	m, err := store.GetMission(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetMission failed: %v", err)
	}
	if m.Poster != poster || m.Escrow != escrow || m.State != mission.StateOpen {
		t.Errorf("mission = %+v", m)
	}
}

func TestGetMissionNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM missions WHERE id = \$1`).
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetMission(context.Background(), 99)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMissionNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE missions SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateMission(context.Background(), mission.Mission{ID: 99})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetActiveDisputeByMissionExcludesFinalized(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM disputes\s+WHERE mission_id = \$1 AND state <> \$2`).
		WithArgs(uint64(3), string(dispute.StateFinalized)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetActiveDisputeByMission(context.Background(), 3)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertGuild(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO guilds .+ ON CONFLICT \(address\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	g, err := store.UpsertGuild(context.Background(), guild.Guild{
		Address: addr(2),
		Name:    "Forge Collective",
		FeeBps:  500,
	})
	if err != nil {
		t.Fatalf("UpsertGuild failed: %v", err)
	}
	if g.RegisteredAt.IsZero() {
		t.Error("upsert must stamp registered_at on first write")
	}
}

func TestHasAward(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM awards`).
		WithArgs("b1", addr(1).String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	held, err := store.HasAward(context.Background(), "b1", addr(1))
	if err != nil {
		t.Fatalf("HasAward failed: %v", err)
	}
	if !held {
		t.Error("held = false, want true")
	}
}

// TestStoreIntegration exercises the full round trip against a real database.
// Set TEST_POSTGRES_DSN to run it.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	id, err := store.NextMissionID(ctx)
	if err != nil {
		t.Fatalf("next mission id: %v", err)
	}

	created, err := store.CreateMission(ctx, mission.Mission{
		ID:        id,
		Poster:    addr(1),
		Escrow:    identity.EscrowAddress(id),
		Reward:    5_000_000,
		State:     mission.StateOpen,
		ExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}

	created.State = mission.StateAccepted
	created.Performer = addr(2)
	if _, err := store.UpdateMission(ctx, created); err != nil {
		t.Fatalf("update mission: %v", err)
	}

	got, err := store.GetMission(ctx, id)
	if err != nil {
		t.Fatalf("get mission: %v", err)
	}
	if got.State != mission.StateAccepted || got.Performer != addr(2) {
		t.Errorf("mission = %+v", got)
	}
}
