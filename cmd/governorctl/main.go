// Package main is governorctl, the operator CLI for the weekly governance engine.
// It runs cycles by hand, manages human locks and feeds the scenario memory.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/di"
	"github.com/aristath/governor/pkg/logger"
)

var (
	// Global flags
	dataDir string
	verbose bool

	cfg *config.Config
	log zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "governorctl",
	Short: "Operate the weekly governance engine",
	Long: `governorctl runs weekly governance cycles and manages their inputs.

Commands open the same databases as the server (GOVERNOR_DATA_DIR or --data-dir).
Results are printed to stdout as JSON; logs go to stderr.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dataDir != "" {
			if err := os.Setenv("GOVERNOR_DATA_DIR", dataDir); err != nil {
				return fmt.Errorf("failed to set data dir: %w", err)
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log = logger.New(logger.Config{
			Level:  level,
			Pretty: true,
			Output: cmd.ErrOrStderr(),
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: GOVERNOR_DATA_DIR or ./data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(locksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openContainer wires the databases and services for one command
func openContainer() (*di.Container, *di.JobInstances, error) {
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wire dependencies: %w", err)
	}
	return container, jobs, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
