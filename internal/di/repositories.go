package di

import (
	"fmt"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/modules/humanlock"
	"github.com/aristath/governor/internal/modules/scenarios"
	"github.com/aristath/governor/internal/modules/weekly"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.ScenarioRepo = scenarios.NewRepository(
		container.ScenariosDB.Conn(),
		cfg.Params.Scenario.SimilarityThreshold,
		cfg.ScenarioReadTimeout,
		log,
	)
	container.LedgerRepo = weekly.NewLedgerRepository(container.LedgerDB.Conn(), log)
	container.HumanLockRepo = humanlock.NewRepository(container.ConfigDB.Conn(), log)

	return nil
}
