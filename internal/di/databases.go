package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates the three databases
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. scenarios.db - append-only historical scenario memory
	scenariosDB, err := openDatabase(cfg.DataDir, "scenarios", database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	container.ScenariosDB = scenariosDB

	// 2. ledger.db - committed trade actions, never rewritten
	ledgerDB, err := openDatabase(cfg.DataDir, "ledger", database.ProfileLedger)
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	container.LedgerDB = ledgerDB

	// 3. config.db - human lock directives
	configDB, err := openDatabase(cfg.DataDir, "config", database.ProfileStandard)
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	container.ConfigDB = configDB

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func openDatabase(dataDir, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
