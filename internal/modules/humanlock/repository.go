// Package humanlock provides storage and HTTP management for Human Lock directives,
// the manual per-instrument overrides that dominate every automated layer.
package humanlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
)

// humanLockColumns is the list of columns for the human_locks table.
// Column order must match scanLock().
const humanLockColumns = `ticker, locked, action, reason, signal_id, updated_at`

// Repository handles Human Lock directives stored in config.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new human lock repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "human_locks").Logger(),
	}
}

// Validate checks a directive before it is stored
func Validate(d domain.HumanLockDirective) error {
	if strings.TrimSpace(d.Ticker) == "" {
		return errors.New("ticker is required")
	}
	switch d.Action {
	case domain.ActionBuy, domain.ActionSell, domain.ActionHold, domain.ActionAdjust:
		return nil
	default:
		return fmt.Errorf("invalid action %q: must be BUY, SELL, HOLD or ADJUST", d.Action)
	}
}

// Get returns the directive for ticker, or nil if none exists
func (r *Repository) Get(ctx context.Context, ticker string) (*domain.HumanLockDirective, error) {
	query := "SELECT " + humanLockColumns + " FROM human_locks WHERE ticker = ?"

	d, err := scanLock(r.db.QueryRowContext(ctx, query, normalizeTicker(ticker)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get human lock for %s: %w", ticker, err)
	}
	return d, nil
}

// List returns every directive ordered by ticker
func (r *Repository) List(ctx context.Context) ([]domain.HumanLockDirective, error) {
	query := "SELECT " + humanLockColumns + " FROM human_locks ORDER BY ticker"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list human locks: %w", err)
	}
	defer rows.Close()

	locks := make([]domain.HumanLockDirective, 0)
	for rows.Next() {
		d, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan human lock: %w", err)
		}
		locks = append(locks, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read human locks: %w", err)
	}
	return locks, nil
}

// Upsert stores d, replacing any directive for the same ticker
func (r *Repository) Upsert(ctx context.Context, d domain.HumanLockDirective) (domain.HumanLockDirective, error) {
	d.Ticker = normalizeTicker(d.Ticker)
	if err := Validate(d); err != nil {
		return domain.HumanLockDirective{}, err
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	d.UpdatedAt = d.UpdatedAt.UTC().Truncate(time.Second)

	query := `
		INSERT INTO human_locks (ticker, locked, action, reason, signal_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			locked = excluded.locked,
			action = excluded.action,
			reason = excluded.reason,
			signal_id = excluded.signal_id,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		d.Ticker,
		boolToInt(d.Locked),
		string(d.Action),
		d.Reason,
		d.SignalID,
		d.UpdatedAt.Unix(),
	)
	if err != nil {
		return domain.HumanLockDirective{}, fmt.Errorf("failed to upsert human lock for %s: %w", d.Ticker, err)
	}

	r.log.Info().
		Str("ticker", d.Ticker).
		Bool("locked", d.Locked).
		Str("action", string(d.Action)).
		Msg("Human lock updated")

	return d, nil
}

// Delete removes the directive for ticker. Returns false if none existed.
func (r *Repository) Delete(ctx context.Context, ticker string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM human_locks WHERE ticker = ?", normalizeTicker(ticker))
	if err != nil {
		return false, fmt.Errorf("failed to delete human lock for %s: %w", ticker, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected > 0 {
		r.log.Info().Str("ticker", normalizeTicker(ticker)).Msg("Human lock removed")
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLock(row rowScanner) (*domain.HumanLockDirective, error) {
	var (
		d         domain.HumanLockDirective
		locked    int
		action    string
		updatedAt int64
	)
	if err := row.Scan(&d.Ticker, &locked, &action, &d.Reason, &d.SignalID, &updatedAt); err != nil {
		return nil, err
	}
	d.Locked = locked != 0
	d.Action = domain.Action(action)
	d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &d, nil
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
