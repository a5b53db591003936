package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/drover-project/drover/internal/lock"
	"github.com/drover-project/drover/pkg/color"
	"github.com/drover-project/drover/pkg/sessionid"
)

var (
	lockSession    string
	lockForce      bool
	lockWorkerID   int
	lockLabel      string
	timeoutMinutes int
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and manage work-item locks",
}

var locksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all lock records with staleness",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		snaps, err := mgr.List(flagTimeout())
		if err != nil {
			return err
		}
		if outputJSON(snaps) {
			return nil
		}
		if len(snaps) == 0 {
			fmt.Println("no locks held")
			return nil
		}
		for _, s := range snaps {
			line := fmt.Sprintf("item %-6d session=%s host=%s held=%s heartbeat_age=%s",
				s.ItemID, s.SessionID, s.Hostname,
				formatSeconds(s.HeldSeconds), formatSeconds(s.HeartbeatAgeSeconds))
			if s.Stale {
				fmt.Println(color.Warning(line + "  [stale]"))
			} else {
				fmt.Println(line)
			}
		}
		return nil
	},
}

var locksStatusCmd = &cobra.Command{
	Use:   "status <item-id>",
	Short: "Show the lock record for one item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		mgr, err := newManager()
		if err != nil {
			return err
		}
		snaps, err := mgr.List(flagTimeout())
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if s.ItemID != itemID {
				continue
			}
			if outputJSON(s) {
				return nil
			}
			fmt.Printf("Item: %d\n", s.ItemID)
			fmt.Printf("Session: %s\n", color.Info(s.SessionID))
			fmt.Printf("Host: %s (pid %d)\n", s.Hostname, s.PID)
			fmt.Printf("Locked at: %s\n", s.LockedAt.Format(time.RFC3339))
			fmt.Printf("Last heartbeat: %s (%s ago)\n",
				s.LastHeartbeat.Format(time.RFC3339), formatSeconds(s.HeartbeatAgeSeconds))
			if s.ContextLabel != "" {
				fmt.Printf("Context: %s\n", s.ContextLabel)
			}
			if s.Stale {
				fmt.Println(color.Warning("State: stale"))
			} else {
				fmt.Println("State: fresh")
			}
			return nil
		}
		if outputJSON(map[string]any{"item_id": itemID, "held": false}) {
			return nil
		}
		fmt.Printf("item %d is not locked\n", itemID)
		return nil
	},
}

var locksAcquireCmd = &cobra.Command{
	Use:   "acquire <item-id>",
	Short: "Attempt to acquire ownership of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		mgr, err := newManager()
		if err != nil {
			return err
		}
		session := lockSession
		if session == "" {
			session = sessionid.New()
		}
		opts := lock.AcquireOptions{ForceClaim: lockForce, ContextLabel: lockLabel}
		if cmd.Flags().Changed("worker") {
			opts.WorkerID = &lockWorkerID
		}
		outcome, err := mgr.Acquire(itemID, session, opts)
		if err != nil {
			return err
		}
		if outputJSON(outcome) {
			return nil
		}
		if !outcome.Granted {
			// Contention is a skip, not an error: exit zero.
			fmt.Println(color.Warning(fmt.Sprintf("item %d already locked, skipping", itemID)))
			return nil
		}
		fmt.Println(color.Successf("acquired item %d", itemID))
		fmt.Printf("  Session: %s\n", color.Info(outcome.Record.SessionID))
		return nil
	},
}

var locksReleaseCmd = &cobra.Command{
	Use:   "release <item-id>",
	Short: "Release an item owned by the given session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		if lockSession == "" {
			return fmt.Errorf("release requires --session")
		}
		mgr, err := newManager()
		if err != nil {
			return err
		}
		ok, err := mgr.Release(itemID, lockSession)
		if err != nil {
			return err
		}
		if outputJSON(map[string]any{"item_id": itemID, "released": ok}) {
			return nil
		}
		if !ok {
			return fmt.Errorf("item %d is owned by a different session", itemID)
		}
		fmt.Println(color.Successf("released item %d", itemID))
		return nil
	},
}

var locksRenewCmd = &cobra.Command{
	Use:   "renew <item-id>",
	Short: "Renew the heartbeat on an owned item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseItemID(args[0])
		if err != nil {
			return err
		}
		if lockSession == "" {
			return fmt.Errorf("renew requires --session")
		}
		mgr, err := newManager()
		if err != nil {
			return err
		}
		ok, err := mgr.RenewHeartbeat(itemID, lockSession)
		if err != nil {
			return err
		}
		if outputJSON(map[string]any{"item_id": itemID, "renewed": ok}) {
			return nil
		}
		if !ok {
			return fmt.Errorf("item %d is not owned by this session", itemID)
		}
		fmt.Println(color.Successf("renewed heartbeat on item %d", itemID))
		return nil
	},
}

var locksCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Force-release every stale lock record",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		removed, err := mgr.Cleanup(flagTimeout())
		if err != nil {
			return err
		}
		if outputJSON(map[string]any{"removed": removed}) {
			return nil
		}
		fmt.Printf("removed %d stale lock(s)\n", removed)
		return nil
	},
}

var locksReleaseSessionCmd = &cobra.Command{
	Use:   "release-session <session-id>",
	Short: "Release every lock owned by a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		released, err := mgr.ReleaseAllForSession(args[0])
		if err != nil {
			return err
		}
		if outputJSON(map[string]any{"session": args[0], "released": released}) {
			return nil
		}
		fmt.Printf("released %d lock(s) for session %s\n", released, args[0])
		return nil
	},
}

func init() {
	locksCmd.PersistentFlags().IntVar(&timeoutMinutes, "timeout", 0,
		"staleness timeout in minutes (0 uses the configured value)")
	locksCmd.PersistentFlags().StringVar(&lockSession, "session", "", "session identifier")
	locksAcquireCmd.Flags().BoolVar(&lockForce, "force", false,
		"reclaim a stale record owned by another session")
	locksAcquireCmd.Flags().IntVar(&lockWorkerID, "worker", 0, "worker id to record")
	locksAcquireCmd.Flags().StringVar(&lockLabel, "label", "", "context label to record")

	locksCmd.AddCommand(locksListCmd, locksStatusCmd, locksAcquireCmd,
		locksReleaseCmd, locksRenewCmd, locksCleanupCmd, locksReleaseSessionCmd)
	rootCmd.AddCommand(locksCmd)
}

func newManager() (*lock.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return lock.NewManager(coordinationDir(cfg),
		lock.WithPolicy(cfg.Policy()),
	), nil
}

func flagTimeout() time.Duration {
	return time.Duration(timeoutMinutes) * time.Minute
}

func parseItemID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Truncate(time.Second).String()
}
