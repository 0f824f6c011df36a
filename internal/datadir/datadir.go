// Package datadir resolves where the checker keeps its persistent state.
package datadir

import (
	"os"
	"path/filepath"
)

const dbFileName = "iptv_manager.db"

// Dir returns the per-user data directory, creating it if needed.
// CHECKER_DATA_DIR overrides; otherwise the OS user config dir is used,
// falling back to the current directory when neither resolves.
func Dir() string {
	if d := os.Getenv("CHECKER_DATA_DIR"); d != "" {
		_ = os.MkdirAll(d, 0o755)
		return d
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	d := filepath.Join(base, "iptv-checker")
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "."
	}
	return d
}

// DBPath returns the default sqlite database path inside Dir.
func DBPath() string {
	return filepath.Join(Dir(), dbFileName)
}
