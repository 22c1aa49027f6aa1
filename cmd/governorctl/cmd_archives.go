package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveRetentionWeeks int

// archivesCmd groups the R2 archive commands
var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Inspect and rotate weekly documents archived to R2",
}

var archivesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived weekly documents, newest first",
	RunE:  runArchivesList,
}

var archivesRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Delete archives older than the retention window",
	Long: `Delete archived documents older than the retention window.
The three newest archives are always kept.`,
	RunE: runArchivesRotate,
}

func init() {
	archivesRotateCmd.Flags().IntVar(&archiveRetentionWeeks, "retention-weeks", 0, "Retention in ISO weeks (default: R2_RETENTION_WEEKS)")

	archivesCmd.AddCommand(archivesListCmd)
	archivesCmd.AddCommand(archivesRotateCmd)
	rootCmd.AddCommand(archivesCmd)
}

func runArchivesList(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	if container.ArchiveService == nil {
		return fmt.Errorf("R2 is not configured")
	}
	archives, err := container.ArchiveService.ListArchives(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), archives)
}

func runArchivesRotate(cmd *cobra.Command, args []string) error {
	container, _, err := openContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	if container.ArchiveService == nil {
		return fmt.Errorf("R2 is not configured")
	}
	retention := archiveRetentionWeeks
	if retention <= 0 {
		retention = cfg.ArchiveRetentionWeeks
	}
	deleted, err := container.ArchiveService.RotateOldArchives(cmd.Context(), retention)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d archives\n", deleted)
	return nil
}
