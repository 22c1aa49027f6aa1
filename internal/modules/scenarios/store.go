package scenarios

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/google/uuid"
)

// Reader answers similarity queries against the scenario log
type Reader interface {
	FindSimilar(ctx context.Context, sig Signature, maxResults int) ([]domain.ScoredScenario, error)
}

// Log is the append-only scenario memory. Append is reserved for the outcome
// recorder; the governance cycle only reads through a Snapshot.
type Log interface {
	Reader

	// Append stores a record and returns it with its id and timestamp filled in
	Append(ctx context.Context, rec domain.ScenarioRecord) (domain.ScenarioRecord, error)

	// Watermark returns the position of the newest record
	Watermark(ctx context.Context) (int64, error)

	// Snapshot returns a reader that only sees records up to watermark
	Snapshot(watermark int64) Reader

	// Recent returns the newest records, newest first
	Recent(ctx context.Context, limit int) ([]domain.ScenarioRecord, error)
}

// prepareRecord fills in the scenario id, timestamp and empty lists
func prepareRecord(rec domain.ScenarioRecord, now time.Time) domain.ScenarioRecord {
	if rec.ScenarioID == "" {
		rec.ScenarioID = "SCENARIO_" + uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Second)
	if rec.MarketTags == nil {
		rec.MarketTags = []string{}
	}
	if rec.EvidenceIDs == nil {
		rec.EvidenceIDs = []string{}
	}
	return rec
}

// MemoryStore is an in-process Log. The slice position is the watermark.
type MemoryStore struct {
	mu        sync.RWMutex
	records   []domain.ScenarioRecord
	threshold float64
}

// NewMemoryStore creates an empty in-memory scenario log
func NewMemoryStore(threshold float64) *MemoryStore {
	return &MemoryStore{threshold: threshold}
}

// Append appends rec
func (s *MemoryStore) Append(ctx context.Context, rec domain.ScenarioRecord) (domain.ScenarioRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScenarioRecord{}, err
	}
	rec = prepareRecord(rec, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return rec, nil
}

// Watermark returns the number of records
func (s *MemoryStore) Watermark(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// FindSimilar searches every record
func (s *MemoryStore) FindSimilar(ctx context.Context, sig Signature, maxResults int) ([]domain.ScoredScenario, error) {
	return s.find(ctx, sig, maxResults, -1)
}

// Snapshot returns a reader bounded by watermark
func (s *MemoryStore) Snapshot(watermark int64) Reader {
	return &memorySnapshot{store: s, watermark: watermark}
}

// Recent returns the newest records first
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]domain.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScenarioRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) find(ctx context.Context, sig Signature, maxResults int, watermark int64) ([]domain.ScoredScenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := s.records
	if watermark >= 0 && watermark < int64(len(records)) {
		records = records[:watermark]
	}
	records = append([]domain.ScenarioRecord(nil), records...)
	s.mu.RUnlock()

	return Rank(records, sig.Tags(), s.threshold, maxResults), nil
}

type memorySnapshot struct {
	store     *MemoryStore
	watermark int64
}

func (r *memorySnapshot) FindSimilar(ctx context.Context, sig Signature, maxResults int) ([]domain.ScoredScenario, error) {
	return r.store.find(ctx, sig, maxResults, r.watermark)
}

// Unavailable returns a reader that fails every query with err. The cycle uses it
// when the watermark cannot be read, so the Safety Lock fails open per instrument.
func Unavailable(err error) Reader {
	return unavailableReader{err: err}
}

type unavailableReader struct {
	err error
}

func (r unavailableReader) FindSimilar(context.Context, Signature, int) ([]domain.ScoredScenario, error) {
	return nil, r.err
}
