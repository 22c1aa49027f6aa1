// Package reliability archives weekly documents to object storage and keeps the
// local databases healthy.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/modules/weekly"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	archivePrefix = "governor-weekly-"
	archiveSuffix = ".json.gz"

	// minArchivesToKeep survive rotation regardless of age
	minArchivesToKeep = 3
)

// ObjectStore is the subset of R2Client the archive needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType, contentEncoding string) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// DocumentLedger reads stored weekly documents and records their archive location
type DocumentLedger interface {
	GetDocument(ctx context.Context, strategyVersion string) (*domain.WeeklyTradeActions, error)
	MarkArchived(ctx context.Context, strategyVersion, key string, at time.Time) error
}

// ArchiveInfo represents one archived weekly document
type ArchiveInfo struct {
	Key             string    `json:"key"`
	StrategyVersion string    `json:"strategy_version"`
	SizeBytes       int64     `json:"size_bytes"`
	Checksum        string    `json:"checksum,omitempty"`
	LastModified    time.Time `json:"last_modified,omitempty"`
}

// WeeklyArchiveService uploads assembled weekly documents to R2 as gzipped JSON
type WeeklyArchiveService struct {
	store  ObjectStore
	ledger DocumentLedger
	bus    *events.Bus
	clock  func() time.Time
	log    zerolog.Logger
}

// NewWeeklyArchiveService creates a new archive service. bus may be nil.
func NewWeeklyArchiveService(store ObjectStore, ledger DocumentLedger, bus *events.Bus, log zerolog.Logger) *WeeklyArchiveService {
	return &WeeklyArchiveService{
		store:  store,
		ledger: ledger,
		bus:    bus,
		clock:  time.Now,
		log:    log.With().Str("service", "weekly_archive").Logger(),
	}
}

// SetClock replaces the clock used for archive timestamps and rotation
func (s *WeeklyArchiveService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// ArchiveKey returns the object key of a strategy version
func ArchiveKey(strategyVersion string) string {
	return archivePrefix + strategyVersion + archiveSuffix
}

// Archive uploads the stored document of strategyVersion and records the key in
// the ledger. Re-archiving a version overwrites the object.
func (s *WeeklyArchiveService) Archive(ctx context.Context, strategyVersion string) (*ArchiveInfo, error) {
	startTime := s.clock()

	doc, err := s.ledger.GetDocument(ctx, strategyVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly document %s: %w", strategyVersion, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("weekly document %s not found", strategyVersion)
	}

	payload, err := compressDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to compress weekly document %s: %w", strategyVersion, err)
	}

	key := ArchiveKey(strategyVersion)
	if err := s.store.Upload(ctx, key, bytes.NewReader(payload), "application/json", "gzip"); err != nil {
		return nil, fmt.Errorf("failed to upload weekly document %s: %w", strategyVersion, err)
	}

	archivedAt := s.clock()
	if err := s.ledger.MarkArchived(ctx, strategyVersion, key, archivedAt); err != nil {
		return nil, err
	}

	info := &ArchiveInfo{
		Key:             key,
		StrategyVersion: strategyVersion,
		SizeBytes:       int64(len(payload)),
		Checksum:        fmt.Sprintf("sha256:%x", sha256.Sum256(payload)),
		LastModified:    archivedAt.UTC(),
	}

	s.bus.Emit("reliability", &events.WeeklyArchivedData{
		StrategyVersion: strategyVersion,
		Key:             key,
		SizeBytes:       info.SizeBytes,
	})
	s.log.Info().
		Str("strategy_version", strategyVersion).
		Str("key", key).
		Int64("size_bytes", info.SizeBytes).
		Str("checksum", info.Checksum).
		Dur("duration", archivedAt.Sub(startTime)).
		Msg("Weekly document archived")

	return info, nil
}

// ListArchives lists the archived documents, newest version first
func (s *WeeklyArchiveService) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly archives: %w", err)
	}

	archives := make([]ArchiveInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		key := *obj.Key
		if !strings.HasPrefix(key, archivePrefix) || !strings.HasSuffix(key, archiveSuffix) {
			continue
		}
		version := strings.TrimSuffix(strings.TrimPrefix(key, archivePrefix), archiveSuffix)
		if !strings.HasPrefix(version, "W") {
			s.log.Warn().Str("key", key).Msg("Failed to parse strategy version from archive key")
			continue
		}

		info := ArchiveInfo{Key: key, StrategyVersion: version}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		if obj.LastModified != nil {
			info.LastModified = obj.LastModified.UTC()
		}
		archives = append(archives, info)
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].StrategyVersion > archives[j].StrategyVersion
	})

	return archives, nil
}

// RotateOldArchives deletes archives older than retentionWeeks ISO weeks. The newest
// minArchivesToKeep are always kept; a retention of 0 keeps everything.
func (s *WeeklyArchiveService) RotateOldArchives(ctx context.Context, retentionWeeks int) (int, error) {
	s.log.Info().Int("retention_weeks", retentionWeeks).Msg("Starting weekly archive rotation")

	archives, err := s.ListArchives(ctx)
	if err != nil {
		return 0, err
	}
	if retentionWeeks <= 0 || len(archives) <= minArchivesToKeep {
		s.log.Info().Int("count", len(archives)).Msg("Nothing to rotate")
		return 0, nil
	}

	cutoff := weekly.StrategyVersion(s.clock().AddDate(0, 0, -7*retentionWeeks))

	deleted := 0
	for _, archive := range archives[minArchivesToKeep:] {
		if archive.StrategyVersion >= cutoff {
			continue
		}
		if err := s.store.Delete(ctx, archive.Key); err != nil {
			s.log.Error().Err(err).Str("key", archive.Key).Msg("Failed to delete old archive")
			continue
		}
		s.log.Info().Str("key", archive.Key).Msg("Deleted old archive")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Weekly archive rotation completed")

	return deleted, nil
}

func compressDocument(doc *domain.WeeklyTradeActions) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	encoder := json.NewEncoder(gz)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
