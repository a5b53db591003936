package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/drover-project/drover/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage drover configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if outputJSON(cfg) {
			return nil
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if err := config.Save(rootDir, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", config.Path(rootDir))
		return nil
	},
}

var configHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show applied config migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := config.History(rootDir)
		if outputJSON(entries) {
			return nil
		}
		if len(entries) == 0 {
			fmt.Println("no migrations applied")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("v%d -> v%d at %s (backup: %s)\n",
				e.FromVersion, e.ToVersion, e.MigratedAt.Format(time.RFC3339), e.BackupPath)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd, configHistoryCmd)
	rootCmd.AddCommand(configCmd)
}
