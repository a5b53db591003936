package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drover-project/drover/pkg/errclass"
	"github.com/drover-project/drover/pkg/fsutil"
	"github.com/drover-project/drover/pkg/jsonutil"
	"github.com/drover-project/drover/pkg/logging"
)

// HistoryEntry records one applied config migration in
// <root>/.drover/migrations.json.
type HistoryEntry struct {
	FromVersion int       `json:"from_version"`
	ToVersion   int       `json:"to_version"`
	MigratedAt  time.Time `json:"migrated_at"`
	BackupPath  string    `json:"backup_path"`
}

// migration upgrades a generic config document one version step.
// Migrations operate on the raw document because older layouts do not
// decode into the current Config struct.
type migration struct {
	from  int
	to    int
	apply func(doc map[string]any) map[string]any
}

var migrations = []migration{
	{from: 1, to: 2, apply: migrateV1},
}

// migrateV1 lifts the flat v1 timing keys into the coordination block
// and introduces the heartbeat interval with its default.
func migrateV1(doc map[string]any) map[string]any {
	coord, _ := doc["coordination"].(map[string]any)
	if coord == nil {
		coord = make(map[string]any)
	}
	if v, ok := doc["stale_timeout_minutes"]; ok {
		coord["stale_timeout_minutes"] = v
		delete(doc, "stale_timeout_minutes")
	}
	if v, ok := doc["coordination_dir"]; ok {
		coord["dir"] = v
		delete(doc, "coordination_dir")
	}
	if _, ok := coord["heartbeat_interval_seconds"]; !ok {
		coord["heartbeat_interval_seconds"] = 300
	}
	doc["coordination"] = coord
	doc["version"] = 2
	return doc
}

// Migrate upgrades raw config bytes from the given version to
// CurrentVersion: back up the original, apply each step, persist the
// result, and append a history entry. The backup write happens before
// anything is modified, so a crash mid-migration leaves a recoverable
// original alongside whichever config file the crash point produced.
func Migrate(root string, data []byte, fromVersion int) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse config: %v", err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}

	backupPath := Path(root) + fmt.Sprintf(".bak.v%d", fromVersion)
	if err := fsutil.AtomicWrite(backupPath, data, 0644); err != nil {
		return nil, fmt.Errorf("write config backup: %w", err)
	}

	version := fromVersion
	for _, m := range migrations {
		if m.from != version {
			continue
		}
		doc = m.apply(doc)
		version = m.to
	}
	if version != CurrentVersion {
		return nil, errclass.ErrConfigVersion.WithMessagef(
			"no migration path from version %d to %d", fromVersion, CurrentVersion)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal migrated config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(out, cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse migrated config: %v", err)
	}
	cfg.Version = CurrentVersion

	if err := Save(root, cfg); err != nil {
		return nil, err
	}
	if err := appendHistory(root, HistoryEntry{
		FromVersion: fromVersion,
		ToVersion:   CurrentVersion,
		MigratedAt:  time.Now().UTC(),
		BackupPath:  backupPath,
	}); err != nil {
		return nil, err
	}

	logging.Info("migrated config", map[string]any{
		"from_version": fromVersion,
		"to_version":   CurrentVersion,
		"backup":       backupPath,
	})
	return cfg, nil
}

// HistoryPath returns the migration history log location under root.
func HistoryPath(root string) string {
	return filepath.Join(root, ".drover", "migrations.json")
}

// History reads the migration log. A missing or corrupt log reads as
// empty; corruption is reported through the resilient parser's warning.
func History(root string) []HistoryEntry {
	data, err := os.ReadFile(HistoryPath(root))
	if err != nil {
		return nil
	}
	var entries []HistoryEntry
	if !jsonutil.SafeUnmarshal(data, &entries, jsonutil.ParseOptions{Source: HistoryPath(root)}) {
		return nil
	}
	return entries
}

// appendHistory adds an entry to the migration log, serialized
// canonically so successive writes of the same history are
// byte-identical.
func appendHistory(root string, entry HistoryEntry) error {
	entries := append(History(root), entry)
	data, err := jsonutil.CanonicalMarshal(entries)
	if err != nil {
		return fmt.Errorf("marshal migration history: %w", err)
	}
	if err := fsutil.WriteWithRetry(HistoryPath(root), data, 0644, fsutil.DefaultRetryPolicy()); err != nil {
		return fmt.Errorf("write migration history: %w", err)
	}
	return nil
}
