package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/governor/internal/domain"
)

var (
	lockAction   string
	lockReason   string
	lockSignalID string
)

// locksCmd groups the human lock commands
var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Manage human lock directives",
}

var locksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List human lock directives",
	RunE:  runLocksList,
}

var locksSetCmd = &cobra.Command{
	Use:   "set TICKER",
	Short: "Lock an instrument to a manual action",
	Long: `Lock an instrument. While locked, the weekly cycle emits the directive's
action for the instrument and skips every automated layer.`,
	Args: cobra.ExactArgs(1),
	RunE: runLocksSet,
}

var locksClearCmd = &cobra.Command{
	Use:   "clear TICKER",
	Short: "Remove the human lock directive of an instrument",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocksClear,
}

func init() {
	locksSetCmd.Flags().StringVar(&lockAction, "action", "HOLD", "BUY, SELL, HOLD or ADJUST")
	locksSetCmd.Flags().StringVar(&lockReason, "reason", "", "Why the instrument is locked")
	locksSetCmd.Flags().StringVar(&lockSignalID, "signal-id", "", "Id of the signal that requested the lock")

	locksCmd.AddCommand(locksListCmd)
	locksCmd.AddCommand(locksSetCmd)
	locksCmd.AddCommand(locksClearCmd)
}

func runLocksList(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	locks, err := container.HumanLockRepo.List(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), locks)
}

func runLocksSet(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	saved, err := container.HumanLockRepo.Upsert(cmd.Context(), domain.HumanLockDirective{
		Ticker:   args[0],
		Locked:   true,
		Action:   domain.Action(strings.ToUpper(lockAction)),
		Reason:   lockReason,
		SignalID: lockSignalID,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), saved)
}

func runLocksClear(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	deleted, err := container.HumanLockRepo.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no human lock for %s", strings.ToUpper(args[0]))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", strings.ToUpper(args[0]))
	return nil
}
