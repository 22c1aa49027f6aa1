package weekly

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DocumentInfo describes one stored weekly document
type DocumentInfo struct {
	StrategyVersion string     `json:"strategy_version"`
	GeneratedAt     time.Time  `json:"generated_at"`
	InstrumentCount int        `json:"instrument_count"`
	ArchivedKey     string     `json:"archived_key,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
}

// LedgerRepository stores committed TradeActions and assembled weekly documents in
// ledger.db. Committed rows are never overwritten.
type LedgerRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB, log zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:  db,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// ============================================================================
// Trade actions
// ============================================================================

// Committed returns the TradeActions already committed for strategyVersion, keyed by ticker
func (r *LedgerRepository) Committed(ctx context.Context, strategyVersion string) (map[string]domain.TradeAction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT ticker, payload FROM trade_actions WHERE strategy_version = ?", strategyVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to query committed actions for %s: %w", strategyVersion, err)
	}
	defer rows.Close()

	actions := make(map[string]domain.TradeAction)
	for rows.Next() {
		var ticker string
		var payload []byte
		if err := rows.Scan(&ticker, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan committed action: %w", err)
		}
		action, err := decodeAction(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode committed action %s/%s: %w", ticker, strategyVersion, err)
		}
		actions[ticker] = action
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating committed actions: %w", err)
	}

	return actions, nil
}

// Commit stores action keyed by (ticker, strategy_version). It returns false when
// the key was already committed; the stored action is kept.
func (r *LedgerRepository) Commit(ctx context.Context, action domain.TradeAction) (bool, error) {
	payload, err := encodeAction(action)
	if err != nil {
		return false, fmt.Errorf("failed to encode action for %s: %w", action.Ticker, err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO trade_actions
			(ticker, strategy_version, evaluation_layer, order_count, payload, committed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, strategy_version) DO NOTHING
	`,
		action.Ticker,
		action.StrategyVersion,
		string(action.EvaluationLayer),
		len(action.NewOrders),
		payload,
		time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to commit action for %s: %w", action.Ticker, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read commit result for %s: %w", action.Ticker, err)
	}
	if affected == 0 {
		r.log.Debug().
			Str("ticker", action.Ticker).
			Str("strategy_version", action.StrategyVersion).
			Msg("Action already committed")
		return false, nil
	}
	return true, nil
}

// ============================================================================
// Weekly documents
// ============================================================================

// SaveDocument stores the assembled document, replacing an earlier assembly of the
// same version. Archive bookkeeping is preserved.
func (r *LedgerRepository) SaveDocument(ctx context.Context, doc domain.WeeklyTradeActions) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal weekly document %s: %w", doc.StrategyVersion, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO weekly_documents (strategy_version, generated_at, instrument_count, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(strategy_version) DO UPDATE SET
			generated_at = excluded.generated_at,
			instrument_count = excluded.instrument_count,
			document = excluded.document
	`, doc.StrategyVersion, doc.GeneratedAt.Unix(), len(doc.WeeklyTradeActions), string(data))
	if err != nil {
		return fmt.Errorf("failed to save weekly document %s: %w", doc.StrategyVersion, err)
	}
	return nil
}

// GetDocument returns the stored document for strategyVersion, or nil if none exists
func (r *LedgerRepository) GetDocument(ctx context.Context, strategyVersion string) (*domain.WeeklyTradeActions, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM weekly_documents WHERE strategy_version = ?", strategyVersion).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly document %s: %w", strategyVersion, err)
	}

	var doc domain.WeeklyTradeActions
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weekly document %s: %w", strategyVersion, err)
	}
	return &doc, nil
}

// ListDocuments returns the newest documents first
func (r *LedgerRepository) ListDocuments(ctx context.Context, limit int) ([]DocumentInfo, error) {
	if limit <= 0 {
		limit = 52
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT strategy_version, generated_at, instrument_count, archived_key, archived_at
		FROM weekly_documents
		ORDER BY strategy_version DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly documents: %w", err)
	}
	defer rows.Close()

	docs := make([]DocumentInfo, 0)
	for rows.Next() {
		var info DocumentInfo
		var generatedAt int64
		var archivedKey sql.NullString
		var archivedAt sql.NullInt64
		if err := rows.Scan(&info.StrategyVersion, &generatedAt, &info.InstrumentCount, &archivedKey, &archivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly document: %w", err)
		}
		info.GeneratedAt = time.Unix(generatedAt, 0).UTC()
		if archivedKey.Valid {
			info.ArchivedKey = archivedKey.String
		}
		if archivedAt.Valid {
			t := time.Unix(archivedAt.Int64, 0).UTC()
			info.ArchivedAt = &t
		}
		docs = append(docs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly documents: %w", err)
	}

	return docs, nil
}

// MarkArchived records where a document was archived
func (r *LedgerRepository) MarkArchived(ctx context.Context, strategyVersion, key string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE weekly_documents SET archived_key = ?, archived_at = ? WHERE strategy_version = ?",
		key, at.Unix(), strategyVersion)
	if err != nil {
		return fmt.Errorf("failed to mark %s archived: %w", strategyVersion, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("weekly document %s not found", strategyVersion)
	}
	return nil
}

// ============================================================================
// Payload encoding
// ============================================================================

// Payloads reuse the JSON field names so the stored form matches the API.
func encodeAction(action domain.TradeAction) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(action); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAction(payload []byte) (domain.TradeAction, error) {
	var action domain.TradeAction
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&action); err != nil {
		return domain.TradeAction{}, err
	}
	action.Normalize()
	return action, nil
}
