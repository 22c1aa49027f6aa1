package scenarios

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/governor/internal/domain"
	testingpkg "github.com/aristath/governor/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vixHighSignature = Signature{VIXLevel: VIXHigh}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "scenarios")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), 0.3, 2*time.Second, zerolog.Nop())
}

// logsUnderTest returns both Log implementations so they are held to the same contract
func logsUnderTest(t *testing.T) map[string]Log {
	return map[string]Log{
		"memory": NewMemoryStore(0.3),
		"sqlite": newTestRepository(t),
	}
}

func TestLog_AppendFillsIdentity(t *testing.T) {
	for name, store := range logsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := store.Append(context.Background(), domain.ScenarioRecord{
				MarketTags:    []string{"VIX_HIGH"},
				ResultSummary: "Return: 2.00%",
			})
			require.NoError(t, err)

			assert.NotEmpty(t, rec.ScenarioID)
			assert.False(t, rec.CreatedAt.IsZero())
			assert.NotNil(t, rec.EvidenceIDs)

			recent, err := store.Recent(context.Background(), 10)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, rec.ScenarioID, recent[0].ScenarioID)
			assert.Equal(t, []string{"VIX_HIGH"}, recent[0].MarketTags)
			assert.True(t, rec.CreatedAt.Equal(recent[0].CreatedAt))
		})
	}
}

func TestLog_FindSimilar(t *testing.T) {
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	for name, store := range logsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, rec := range testingpkg.NewScenarioRecords(4, 1, []string{"VIX_HIGH"}, start) {
				_, err := store.Append(ctx, rec)
				require.NoError(t, err)
			}
			_, err := store.Append(ctx, domain.ScenarioRecord{MarketTags: []string{"BEAR_MARKET"}, CreatedAt: start})
			require.NoError(t, err)

			found, err := store.FindSimilar(ctx, vixHighSignature, 3)
			require.NoError(t, err)
			require.Len(t, found, 3)
			for _, f := range found {
				assert.Equal(t, 1.0, f.Similarity)
			}
			// newest first
			assert.True(t, found[0].Record.CreatedAt.After(found[1].Record.CreatedAt))
		})
	}
}

func TestLog_SnapshotIgnoresLaterAppends(t *testing.T) {
	start := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)

	for name, store := range logsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, rec := range testingpkg.NewScenarioRecords(3, 0, []string{"VIX_HIGH"}, start) {
				_, err := store.Append(ctx, rec)
				require.NoError(t, err)
			}

			watermark, err := store.Watermark(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), watermark)
			snapshot := store.Snapshot(watermark)

			// a prior cycle's recorder keeps writing
			for _, rec := range testingpkg.NewScenarioRecords(2, 2, []string{"VIX_HIGH"}, start.Add(time.Hour)) {
				_, err := store.Append(ctx, rec)
				require.NoError(t, err)
			}

			pinned, err := snapshot.FindSimilar(ctx, vixHighSignature, 20)
			require.NoError(t, err)
			assert.Len(t, pinned, 3)

			all, err := store.FindSimilar(ctx, vixHighSignature, 20)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestLog_EmptyWatermark(t *testing.T) {
	for name, store := range logsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			watermark, err := store.Watermark(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(0), watermark)

			found, err := store.Snapshot(watermark).FindSimilar(context.Background(), vixHighSignature, 20)
			require.NoError(t, err)
			assert.Empty(t, found)
		})
	}
}

func TestLog_CancelledContext(t *testing.T) {
	for name, store := range logsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := store.FindSimilar(ctx, vixHighSignature, 20)
			assert.Error(t, err)
		})
	}
}

func TestRepository_IsAppendOnly(t *testing.T) {
	repo := newTestRepository(t)
	rec, err := repo.Append(context.Background(), domain.ScenarioRecord{MarketTags: []string{"VIX_HIGH"}})
	require.NoError(t, err)

	_, err = repo.db.Exec("UPDATE scenarios SET lesson = 'rewritten' WHERE scenario_id = ?", rec.ScenarioID)
	assert.Error(t, err)

	_, err = repo.db.Exec("DELETE FROM scenarios")
	assert.Error(t, err)

	_, err = repo.Append(context.Background(), rec)
	assert.Error(t, err, "duplicate scenario ids are rejected")
}

func TestRepository_PersistsReturnPct(t *testing.T) {
	repo := newTestRepository(t)
	rec := NewRecord([]string{"BEAR_MARKET"}, "bear rally faded", Outcome{Return: testingpkg.Float(-0.052)})

	_, err := repo.Append(context.Background(), rec)
	require.NoError(t, err)

	found, err := repo.FindSimilar(context.Background(), Signature{MarketRegime: domain.MarketRegimeBear}, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.NotNil(t, found[0].Record.ReturnPct)
	assert.Equal(t, -5.2, *found[0].Record.ReturnPct)
	assert.Equal(t, "Return: -5.20%", found[0].Record.ResultSummary)
}

func TestRepository_SkipsMalformedRows(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.db.Exec(`INSERT INTO scenarios (scenario_id, market_tags, created_at) VALUES ('bad', 'not-json', 1)`)
	require.NoError(t, err)
	_, err = repo.Append(context.Background(), domain.ScenarioRecord{MarketTags: []string{"VIX_HIGH"}})
	require.NoError(t, err)

	found, err := repo.FindSimilar(context.Background(), vixHighSignature, 20)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

type failingReader struct{}

func (failingReader) FindSimilar(context.Context, Signature, int) ([]domain.ScoredScenario, error) {
	return nil, errors.New("database is locked")
}

func TestUnavailable_FailsOpen(t *testing.T) {
	cause := errors.New("watermark unreadable")
	reader := Unavailable(cause)

	_, err := reader.FindSimilar(context.Background(), vixHighSignature, 20)
	assert.ErrorIs(t, err, cause)

	result := NewSafetyLockEvaluator(reader, nil, zerolog.Nop()).Check(context.Background(), testingpkg.NewCalmContext("XYZ"))
	assert.False(t, result.Active)
	assert.Nil(t, result.MaxExposure)
}
