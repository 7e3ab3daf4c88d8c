package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesValidConfig(t *testing.T) {
	path := writeConfig(t, `
command: ["tamer", "--search", "astar"]
work_dir: /tmp/work
timeout: 30s
debug_dump_dir: /tmp/dump
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"tamer", "--search", "astar"}, cfg.Command)
	require.Equal(t, "/tmp/work", cfg.WorkDir)
	require.Equal(t, "/tmp/dump", cfg.DebugDumpDir)
	require.Equal(t, "30s", cfg.Timeout.String())
}

func TestLoadRejectsEmptyCommand(t *testing.T) {
	path := writeConfig(t, `work_dir: /tmp/work`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
