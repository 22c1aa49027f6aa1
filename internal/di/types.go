// Package di wires the governor's databases, repositories, services and jobs.
package di

import (
	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/database"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/modules/constraints"
	"github.com/aristath/governor/internal/modules/humanlock"
	"github.com/aristath/governor/internal/modules/resolution"
	"github.com/aristath/governor/internal/modules/scenarios"
	"github.com/aristath/governor/internal/modules/weekly"
	"github.com/aristath/governor/internal/reliability"
	"github.com/aristath/governor/internal/scheduler"
)

// Container holds every long-lived dependency. It is built by Wire and handed to
// the server and the CLI.
type Container struct {
	// Databases
	ScenariosDB *database.DB // append-only scenario memory
	LedgerDB    *database.DB // committed trade actions and weekly documents
	ConfigDB    *database.DB // human locks

	EventBus *events.Bus
	Params   *config.Params

	// Repositories
	ScenarioRepo  *scenarios.Repository
	LedgerRepo    *weekly.LedgerRepository
	HumanLockRepo *humanlock.Repository

	// Constraint engine
	Catalog   *constraints.Catalog
	Evaluator *constraints.Evaluator
	Applier   *constraints.Applier
	Guidance  *constraints.Guidance

	// SafetyLock reads the live scenario log; cycles pin their own snapshot
	SafetyLock *scenarios.SafetyLockEvaluator

	Resolver    *resolution.Resolver
	CycleRunner *weekly.CycleRunner
	Inbox       *weekly.FileInbox

	// Nil when R2 is not configured
	R2Client       *reliability.R2Client
	ArchiveService *reliability.WeeklyArchiveService
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	dbs := make(map[string]*database.DB, 3)
	if c.ScenariosDB != nil {
		dbs["scenarios"] = c.ScenariosDB
	}
	if c.LedgerDB != nil {
		dbs["ledger"] = c.LedgerDB
	}
	if c.ConfigDB != nil {
		dbs["config"] = c.ConfigDB
	}
	return dbs
}

// Close closes every open database and returns the first error
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.ScenariosDB, c.LedgerDB, c.ConfigDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// JobInstances holds the scheduled jobs so they can also be triggered by hand
type JobInstances struct {
	WeeklyCycle       *scheduler.WeeklyCycleJob
	DailyMaintenance  *reliability.DailyMaintenanceJob
	WeeklyMaintenance *reliability.WeeklyMaintenanceJob
}
