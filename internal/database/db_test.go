package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString_Profiles(t *testing.T) {
	ledger := buildConnectionString("/tmp/ledger.db", ProfileLedger)
	assert.Contains(t, ledger, "?_pragma=journal_mode(WAL)")
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "auto_vacuum(NONE)")

	standard := buildConnectionString("/tmp/std.db", ProfileStandard)
	assert.Contains(t, standard, "synchronous(NORMAL)")

	memory := buildConnectionString("file:test?mode=memory", ProfileCache)
	assert.Contains(t, memory, "mode=memory&_pragma=journal_mode(WAL)")
}

func TestMigrate_IsIdempotent(t *testing.T) {
	for _, name := range []string{"scenarios", "ledger", "config"} {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t, name, ProfileStandard)
			require.NoError(t, db.Migrate())
			require.NoError(t, db.Migrate())
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "unknown", ProfileStandard)
	assert.NoError(t, db.Migrate())
}

func TestScenariosSchema_IsAppendOnly(t *testing.T) {
	db := newTestDB(t, "scenarios", ProfileLedger)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec(`INSERT INTO scenarios (scenario_id, market_tags, created_at) VALUES ('s1', '["VIX_HIGH"]', 1)`)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`UPDATE scenarios SET lesson = 'x' WHERE scenario_id = 's1'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = db.Conn().Exec(`DELETE FROM scenarios`)
	require.Error(t, err)
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := newTestDB(t, "config", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO human_locks (ticker, action, updated_at) VALUES ('AAA', 'SELL', 1)`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM human_locks`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, "config", ProfileStandard)
	require.NoError(t, db.Migrate())

	errBoom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec(`INSERT INTO human_locks (ticker, action, updated_at) VALUES ('AAA', 'SELL', 1)`)
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM human_locks`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, "config", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestGetStatsAndHealthCheck(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
}
