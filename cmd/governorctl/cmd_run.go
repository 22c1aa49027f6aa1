package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/modules/weekly"
)

var (
	runFile       string
	runVersion    string
	runArchive    bool
	runListInputs bool
	runTimeout    time.Duration
)

// runCmd runs a weekly cycle immediately
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the weekly cycle now",
	Long: `Run (or resume) a weekly governance cycle and print the weekly document.

Inputs come from the inbox directory unless --file names a JSON file holding one
instrument input or an array of them. Instruments already committed for the
strategy version are skipped and keep their stored action.`,
	RunE: runCycle,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read instrument inputs from this JSON file instead of the inbox")
	runCmd.Flags().StringVar(&runVersion, "version", "", "Strategy version to run, e.g. W2026-42 (default: current ISO week)")
	runCmd.Flags().BoolVar(&runArchive, "archive", false, "Archive the document to R2 after the run")
	runCmd.Flags().BoolVar(&runListInputs, "list-inputs", false, "Only print the loaded inputs")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", time.Hour, "Cycle timeout")
}

func runCycle(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	inputs, err := loadInputs(ctx, container.Inbox)
	if err != nil {
		return err
	}
	if runListInputs {
		return printJSON(cmd.OutOrStdout(), inputs)
	}

	version := runVersion
	if version == "" {
		version = weekly.StrategyVersion(time.Now())
	}

	result, err := container.CycleRunner.RunVersion(ctx, version, inputs)
	if err != nil {
		return err
	}

	log.Info().
		Str("strategy_version", version).
		Int("resolved", result.Resolved).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Cycle finished")

	if runArchive {
		if container.ArchiveService == nil {
			return fmt.Errorf("--archive requires R2 credentials")
		}
		info, err := container.ArchiveService.Archive(ctx, version)
		if err != nil {
			return fmt.Errorf("cycle committed but archive failed: %w", err)
		}
		log.Info().Str("key", info.Key).Msg("Weekly document archived")
	}

	return printJSON(cmd.OutOrStdout(), result.Document)
}

func loadInputs(ctx context.Context, inbox domain.InstrumentSource) ([]domain.InstrumentInput, error) {
	if runFile == "" {
		return inbox.Load(ctx)
	}
	data, err := os.ReadFile(runFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", runFile, err)
	}
	inputs, err := weekly.DecodeInputs(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", runFile, err)
	}
	return inputs, nil
}
