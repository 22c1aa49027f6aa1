package humanlock

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func setupHumanLockTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1) // each :memory: connection is its own database

	_, err = db.Exec(`
		CREATE TABLE human_locks (
			ticker TEXT PRIMARY KEY,
			locked INTEGER NOT NULL DEFAULT 1,
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			signal_id TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupHumanLockTestDB(t), zerolog.Nop())

	lock, err := repo.Get(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestRepository_UpsertAndGet(t *testing.T) {
	repo := NewRepository(setupHumanLockTestDB(t), zerolog.Nop())
	ctx := context.Background()
	updated := time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)

	_, err := repo.Upsert(ctx, domain.HumanLockDirective{
		Ticker:    " xyz ",
		Locked:    true,
		Action:    domain.ActionSell,
		Reason:    "earnings fraud allegation",
		SignalID:  "SIG-42",
		UpdatedAt: updated,
	})
	require.NoError(t, err)

	lock, err := repo.Get(ctx, "xyz")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "XYZ", lock.Ticker)
	assert.True(t, lock.Locked)
	assert.Equal(t, domain.ActionSell, lock.Action)
	assert.Equal(t, "SIG-42", lock.SignalID)
	assert.True(t, updated.Equal(lock.UpdatedAt))

	// replace
	_, err = repo.Upsert(ctx, domain.HumanLockDirective{Ticker: "XYZ", Locked: false, Action: domain.ActionHold})
	require.NoError(t, err)

	lock, err = repo.Get(ctx, "XYZ")
	require.NoError(t, err)
	assert.False(t, lock.Locked)
	assert.Equal(t, domain.ActionHold, lock.Action)
	assert.Empty(t, lock.SignalID)
}

func TestRepository_UpsertRejectsInvalid(t *testing.T) {
	repo := NewRepository(setupHumanLockTestDB(t), zerolog.Nop())

	_, err := repo.Upsert(context.Background(), domain.HumanLockDirective{Ticker: "XYZ", Action: "PANIC"})
	assert.ErrorContains(t, err, "invalid action")

	_, err = repo.Upsert(context.Background(), domain.HumanLockDirective{Action: domain.ActionBuy})
	assert.ErrorContains(t, err, "ticker is required")
}

func TestRepository_ListAndDelete(t *testing.T) {
	repo := NewRepository(setupHumanLockTestDB(t), zerolog.Nop())
	ctx := context.Background()

	for _, ticker := range []string{"MSFT", "AAPL"} {
		_, err := repo.Upsert(ctx, domain.HumanLockDirective{Ticker: ticker, Locked: true, Action: domain.ActionHold})
		require.NoError(t, err)
	}

	locks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, "AAPL", locks[0].Ticker)

	deleted, err := repo.Delete(ctx, "aapl")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, deleted)

	locks, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, locks, 1)
}

func TestRepository_ImplementsHumanLockSource(t *testing.T) {
	var _ domain.HumanLockSource = NewRepository(setupHumanLockTestDB(t), zerolog.Nop())
}
