package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/modules/weekly"
	"github.com/aristath/governor/internal/reliability"
	"github.com/rs/zerolog"
)

// CycleRunner runs a weekly cycle over an instrument source
type CycleRunner interface {
	RunSource(ctx context.Context, src domain.InstrumentSource) (*weekly.RunResult, error)
}

// Archiver uploads assembled documents and rotates old archives
type Archiver interface {
	Archive(ctx context.Context, strategyVersion string) (*reliability.ArchiveInfo, error)
	RotateOldArchives(ctx context.Context, retentionWeeks int) (int, error)
}

// WeeklyCycleJobConfig holds the dependencies of WeeklyCycleJob
type WeeklyCycleJobConfig struct {
	Runner         CycleRunner
	Source         domain.InstrumentSource
	Archiver       Archiver // optional
	RetentionWeeks int
	Timeout        time.Duration
	Log            zerolog.Logger
}

// WeeklyCycleJob loads the inbox, runs the weekly cycle and archives the result.
// A run that starts while another is in progress is skipped.
type WeeklyCycleJob struct {
	runner         CycleRunner
	source         domain.InstrumentSource
	archiver       Archiver
	retentionWeeks int
	timeout        time.Duration
	running        sync.Mutex
	log            zerolog.Logger
}

// NewWeeklyCycleJob creates a new weekly cycle job
func NewWeeklyCycleJob(cfg WeeklyCycleJobConfig) *WeeklyCycleJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &WeeklyCycleJob{
		runner:         cfg.Runner,
		source:         cfg.Source,
		archiver:       cfg.Archiver,
		retentionWeeks: cfg.RetentionWeeks,
		timeout:        timeout,
		log:            cfg.Log.With().Str("job", "weekly_cycle").Logger(),
	}
}

// Name returns the job name
func (j *WeeklyCycleJob) Name() string {
	return "weekly_cycle"
}

// Run executes the weekly cycle
func (j *WeeklyCycleJob) Run() error {
	if !j.running.TryLock() {
		j.log.Warn().Msg("Weekly cycle already running, skipping")
		return nil
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.runner.RunSource(ctx, j.source)
	if err != nil {
		return fmt.Errorf("weekly cycle failed: %w", err)
	}

	version := result.Document.StrategyVersion
	j.log.Info().
		Str("strategy_version", version).
		Int("resolved", result.Resolved).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Weekly cycle job finished")

	if j.archiver == nil {
		return nil
	}

	// The document is already in the ledger, so archive failures are not fatal
	if _, err := j.archiver.Archive(ctx, version); err != nil {
		j.log.Error().Err(err).Str("strategy_version", version).Msg("Failed to archive weekly document")
		return nil
	}
	if _, err := j.archiver.RotateOldArchives(ctx, j.retentionWeeks); err != nil {
		j.log.Warn().Err(err).Msg("Failed to rotate weekly archives")
	}
	return nil
}
