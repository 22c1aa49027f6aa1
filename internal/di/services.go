package di

import (
	"context"
	"fmt"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/modules/constraints"
	"github.com/aristath/governor/internal/modules/resolution"
	"github.com/aristath/governor/internal/modules/scenarios"
	"github.com/aristath/governor/internal/modules/weekly"
	"github.com/aristath/governor/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices builds the constraint engine, the resolver and the weekly
// cycle on top of the repositories
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	params := cfg.Params
	container.Params = params
	container.EventBus = events.NewBus(log)

	container.Catalog = constraints.DefaultCatalog(params)
	container.Evaluator = constraints.NewEvaluator(container.Catalog, log)
	container.Applier = constraints.NewApplier(params, log)
	container.Guidance = constraints.NewGuidance()
	container.SafetyLock = scenarios.NewSafetyLockEvaluator(container.ScenarioRepo, params, log)

	container.Resolver = resolution.NewResolver(
		container.HumanLockRepo,
		container.Evaluator,
		container.Applier,
		container.Guidance,
		params,
		log,
	)
	container.CycleRunner = weekly.NewCycleRunner(
		container.Resolver,
		container.ScenarioRepo,
		container.LedgerRepo,
		container.LedgerRepo,
		container.EventBus,
		params,
		log,
	)
	container.Inbox = weekly.NewFileInbox(cfg.InboxDir, log)

	if cfg.R2.Enabled() {
		client, err := reliability.NewR2Client(context.Background(), cfg.R2, log)
		if err != nil {
			return fmt.Errorf("failed to create r2 client: %w", err)
		}
		container.R2Client = client
		container.ArchiveService = reliability.NewWeeklyArchiveService(client, container.LedgerRepo, container.EventBus, log)
		log.Info().Str("bucket", cfg.R2.Bucket).Msg("Weekly archive to R2 enabled")
	} else {
		log.Info().Msg("R2 not configured, weekly documents stay in the ledger only")
	}

	return nil
}
