// Package cli wires the drover commands. The CLI maps typed outcomes to
// exit behavior: a denied acquisition is a skip, not a failure;
// unexpected errors exit nonzero.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/drover-project/drover/pkg/color"
	"github.com/drover-project/drover/pkg/config"
	"github.com/drover-project/drover/pkg/logging"
)

var (
	jsonOutput  bool
	verboseMode bool
	noColor     bool
	rootDir     string

	rootCmd = &cobra.Command{
		Use:   "drover",
		Short: "drover - shared-filesystem task ownership for worker fleets",
		Long: `drover coordinates independent worker processes that share a
filesystem: each worker claims exclusive ownership of integer-keyed work
items through heartbeat-backed lock records, with no lock server or
database involved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
			setupLogging()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "verbose diagnostics")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root containing .drover/")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Error(err.Error()))
		os.Exit(1)
	}
}

func setupLogging() {
	cfg, err := config.Load(rootDir)
	if err != nil {
		// Config problems surface on the command itself; logging falls
		// back to defaults here.
		cfg = config.Default()
	}
	level := logging.ParseLevel(cfg.Logging.Level)
	if verboseMode {
		level = logging.LevelDebug
	}
	log := logging.NewLogger(level)
	if cfg.Logging.Format == "json" {
		log.SetFormat(logging.FormatJSON)
	}
	logging.SetGlobal(log)
}

// loadConfig loads the effective configuration for the chosen root.
func loadConfig() (*config.Config, error) {
	return config.Load(rootDir)
}

// coordinationDir resolves the configured coordination directory
// against the project root.
func coordinationDir(cfg *config.Config) string {
	dir := cfg.Coordination.Dir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(rootDir, dir)
}

// outputJSON prints v as JSON if --json is set; reports whether it did.
func outputJSON(v any) bool {
	if !jsonOutput {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
	return true
}
