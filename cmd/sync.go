package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/syncer"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full or incremental sync of a space",
	Long: `Run one sync of a space and print its summary.

	Example: confluence-mirror sync --space SIA --type full`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return err
		}
		space, _ := cmd.Flags().GetString("space")
		if space == "" {
			return fmt.Errorf("--space is required")
		}
		typ, _ := cmd.Flags().GetString("type")
		_, err := syncer.ParseMode(typ)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		space, _ := cmd.Flags().GetString("space")
		typ, _ := cmd.Flags().GetString("type")

		summary, err := syncer.New(cfg).Run(cmd.Context(), space, syncer.Mode(typ))
		if summary != nil {
			writeSummary(cmd.OutOrStdout(), summary)
		}
		return err
	},
}

func writeSummary(w io.Writer, s *types.Summary) {
	fmt.Fprintf(w, "run %s: %s sync of %s into %s\n", s.RunID, s.Mode, s.Space, s.Container)
	fmt.Fprintf(w, "visited %d, uploaded %d, failed %d, ambiguous titles %d\n", s.Visited, s.Uploaded, s.Failed, s.Ambiguous)
	for _, f := range s.Failures() {
		fmt.Fprintf(w, "  failed %s %q at %s: %v\n", f.PageID, f.Title, f.Stage, f.Err)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("space", "", "Confluence space key")
	syncCmd.Flags().String("type", "full", "sync type: full or incremental")
}
