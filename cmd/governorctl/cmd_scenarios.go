package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/modules/scenarios"
)

var (
	scenarioTags     []string
	scenarioSummary  string
	scenarioLesson   string
	scenarioReturn   float64
	scenarioMDD      float64
	scenarioEvidence []string
	scenarioContext  string
	scenarioLimit    int
)

// scenariosCmd groups the scenario memory commands
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Read and append the scenario memory",
}

// scenariosRecordCmd appends the outcome of a finished strategy
var scenariosRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append a strategy outcome to the scenario memory",
	Long: `Append one record to the append-only scenario memory.

Returns and drawdowns are fractions: --return 0.042 records a 4.2% gain.
Records are never updated; a correction is a new record.`,
	RunE: runScenariosRecord,
}

// scenariosSimilarCmd queries the memory with the signature of an evaluation context
var scenariosSimilarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find past scenarios similar to an evaluation context",
	RunE:  runScenariosSimilar,
}

// scenariosRecentCmd lists the newest records
var scenariosRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the newest scenario records",
	RunE:  runScenariosRecent,
}

func init() {
	scenariosRecordCmd.Flags().StringSliceVar(&scenarioTags, "tags", nil, "Market tags, e.g. VIX_HIGH,BEAR_MARKET")
	scenariosRecordCmd.Flags().StringVar(&scenarioSummary, "summary", "", "Executive summary of the strategy (required)")
	scenariosRecordCmd.Flags().StringVar(&scenarioLesson, "lesson", "", "Lesson learned")
	scenariosRecordCmd.Flags().Float64Var(&scenarioReturn, "return", 0, "Realized return as a fraction")
	scenariosRecordCmd.Flags().Float64Var(&scenarioMDD, "mdd", 0, "Maximum drawdown as a fraction")
	scenariosRecordCmd.Flags().StringSliceVar(&scenarioEvidence, "evidence", nil, "Evidence ids")
	_ = scenariosRecordCmd.MarkFlagRequired("summary")

	scenariosSimilarCmd.Flags().StringVar(&scenarioContext, "context", "", "JSON file holding an evaluation context (required)")
	scenariosSimilarCmd.Flags().IntVar(&scenarioLimit, "limit", 10, "Maximum results")
	_ = scenariosSimilarCmd.MarkFlagRequired("context")

	scenariosRecentCmd.Flags().IntVar(&scenarioLimit, "limit", 10, "Maximum results")

	scenariosCmd.AddCommand(scenariosRecordCmd)
	scenariosCmd.AddCommand(scenariosSimilarCmd)
	scenariosCmd.AddCommand(scenariosRecentCmd)
}

func runScenariosRecord(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	outcome := scenarios.Outcome{
		Lesson:      scenarioLesson,
		EvidenceIDs: scenarioEvidence,
	}
	if cmd.Flags().Changed("return") {
		outcome.Return = &scenarioReturn
	}
	if cmd.Flags().Changed("mdd") {
		outcome.MDD = &scenarioMDD
	}

	rec, err := container.ScenarioRepo.Append(cmd.Context(), scenarios.NewRecord(scenarioTags, scenarioSummary, outcome))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func runScenariosSimilar(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(scenarioContext)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", scenarioContext, err)
	}
	var ec domain.EvaluationContext
	if err := json.Unmarshal(data, &ec); err != nil {
		return fmt.Errorf("failed to decode evaluation context: %w", err)
	}

	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	sig := scenarios.Extract(ec)
	matches, err := container.ScenarioRepo.FindSimilar(cmd.Context(), sig, scenarioLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"signature": sig,
		"tags":      sig.Tags(),
		"matches":   matches,
	})
}

func runScenariosRecent(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	records, err := container.ScenarioRepo.Recent(cmd.Context(), scenarioLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), records)
}
