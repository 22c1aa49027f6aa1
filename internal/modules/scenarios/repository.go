package scenarios

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
)

// scenarioColumns is the list of columns read from the scenarios table.
// Column order must match scanScenario().
const scenarioColumns = `id, scenario_id, market_tags, executive_summary, lesson, result_summary,
return_pct, evidence_ids, created_at`

// Repository is the SQLite-backed scenario log (scenarios.db).
// Rows are append-only; the autoincrement id is the snapshot watermark.
type Repository struct {
	db          *sql.DB
	threshold   float64
	readTimeout time.Duration
	log         zerolog.Logger
}

// NewRepository creates a new scenario repository. Every similarity read is bounded
// by readTimeout; zero disables the bound.
func NewRepository(db *sql.DB, threshold float64, readTimeout time.Duration, log zerolog.Logger) *Repository {
	return &Repository{
		db:          db,
		threshold:   threshold,
		readTimeout: readTimeout,
		log:         log.With().Str("repository", "scenarios").Logger(),
	}
}

// Append inserts a record. It never updates an existing row.
func (r *Repository) Append(ctx context.Context, rec domain.ScenarioRecord) (domain.ScenarioRecord, error) {
	rec = prepareRecord(rec, time.Now())

	tags, err := json.Marshal(rec.MarketTags)
	if err != nil {
		return domain.ScenarioRecord{}, fmt.Errorf("failed to encode market tags: %w", err)
	}
	evidence, err := json.Marshal(rec.EvidenceIDs)
	if err != nil {
		return domain.ScenarioRecord{}, fmt.Errorf("failed to encode evidence ids: %w", err)
	}

	query := `
		INSERT INTO scenarios
		(scenario_id, market_tags, executive_summary, lesson, result_summary, return_pct, evidence_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var returnPct interface{}
	if rec.ReturnPct != nil {
		returnPct = *rec.ReturnPct
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.ScenarioID,
		string(tags),
		rec.ExecutiveSummary,
		rec.Lesson,
		rec.ResultSummary,
		returnPct,
		string(evidence),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return domain.ScenarioRecord{}, fmt.Errorf("failed to append scenario %s: %w", rec.ScenarioID, err)
	}

	r.log.Info().
		Str("scenario_id", rec.ScenarioID).
		Strs("market_tags", rec.MarketTags).
		Str("result_summary", rec.ResultSummary).
		Msg("Scenario appended")

	return rec, nil
}

// Watermark returns the highest row id, or 0 for an empty log
func (r *Repository) Watermark(ctx context.Context) (int64, error) {
	var watermark sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(id) FROM scenarios").Scan(&watermark); err != nil {
		return 0, fmt.Errorf("failed to read scenario watermark: %w", err)
	}
	return watermark.Int64, nil
}

// FindSimilar searches every committed record
func (r *Repository) FindSimilar(ctx context.Context, sig Signature, maxResults int) ([]domain.ScoredScenario, error) {
	return r.find(ctx, sig, maxResults, -1)
}

// Snapshot returns a reader bounded by watermark
func (r *Repository) Snapshot(watermark int64) Reader {
	return &repositorySnapshot{repo: r, watermark: watermark}
}

// Recent returns the newest records first
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.ScenarioRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + scenarioColumns + " FROM scenarios ORDER BY id DESC LIMIT ?"

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent scenarios: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *Repository) find(ctx context.Context, sig Signature, maxResults int, watermark int64) ([]domain.ScoredScenario, error) {
	if r.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.readTimeout)
		defer cancel()
	}

	query := "SELECT " + scenarioColumns + " FROM scenarios"
	args := []interface{}{}
	if watermark >= 0 {
		query += " WHERE id <= ?"
		args = append(args, watermark)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	records, err := r.scanAll(rows)
	if err != nil {
		return nil, err
	}

	return Rank(records, sig.Tags(), r.threshold, maxResults), nil
}

// scanAll reads every row. Rows with unreadable JSON are skipped.
func (r *Repository) scanAll(rows *sql.Rows) ([]domain.ScenarioRecord, error) {
	records := make([]domain.ScenarioRecord, 0)
	for rows.Next() {
		rec, err := scanScenario(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Skipping unreadable scenario row")
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	return records, nil
}

func scanScenario(rows *sql.Rows) (domain.ScenarioRecord, error) {
	var (
		id        int64
		rec       domain.ScenarioRecord
		tags      string
		evidence  string
		returnPct sql.NullFloat64
		createdAt int64
	)

	err := rows.Scan(
		&id,
		&rec.ScenarioID,
		&tags,
		&rec.ExecutiveSummary,
		&rec.Lesson,
		&rec.ResultSummary,
		&returnPct,
		&evidence,
		&createdAt,
	)
	if err != nil {
		return domain.ScenarioRecord{}, fmt.Errorf("failed to scan scenario: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &rec.MarketTags); err != nil {
		return domain.ScenarioRecord{}, fmt.Errorf("scenario %s: malformed market tags: %w", rec.ScenarioID, err)
	}
	if err := json.Unmarshal([]byte(evidence), &rec.EvidenceIDs); err != nil {
		rec.EvidenceIDs = []string{}
	}
	if returnPct.Valid {
		v := returnPct.Float64
		rec.ReturnPct = &v
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	return rec, nil
}

type repositorySnapshot struct {
	repo      *Repository
	watermark int64
}

func (s *repositorySnapshot) FindSimilar(ctx context.Context, sig Signature, maxResults int) ([]domain.ScoredScenario, error) {
	return s.repo.find(ctx, sig, maxResults, s.watermark)
}
