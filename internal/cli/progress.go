package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-project/drover/internal/state"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the shared progress snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p := state.NewTracker(coordinationDir(cfg), nil).Load()
		if outputJSON(p) {
			return nil
		}
		fmt.Printf("Completed: %d item(s)\n", len(p.CompletedItems))
		fmt.Printf("Failed: %d item(s)\n", len(p.FailedItems))
		if !p.UpdatedAt.IsZero() {
			fmt.Printf("Updated: %s\n", p.UpdatedAt.Format(time.RFC3339))
		}
		for session, stats := range p.Sessions {
			fmt.Printf("  %s: %d completed, %d failed\n", session, stats.Completed, stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
}
