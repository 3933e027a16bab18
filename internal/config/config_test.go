package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_PopulatesAllSections(t *testing.T) {
	path := writeConfigFile(t, `
buffer_pool:
  capacity: 64
  policy: lru
record:
  data_dir: /tmp/rmdb/records
index:
  data_dir: /tmp/rmdb/indexes
  order: 32
server:
  port: 9099
  debug: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.BufferPool.Capacity)
	require.Equal(t, "lru", cfg.BufferPool.Policy)
	require.Equal(t, "/tmp/rmdb/records", cfg.Record.DataDir)
	require.Equal(t, "/tmp/rmdb/indexes", cfg.Index.DataDir)
	require.Equal(t, int32(32), cfg.Index.Order)
	require.Equal(t, 9099, cfg.Server.Port)
	require.True(t, cfg.Server.Debug)
}

func TestLoad_DefaultsAppliedWhenOmitted(t *testing.T) {
	path := writeConfigFile(t, `
record:
  data_dir: /tmp/rmdb/records
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultBufferPoolCapacity, cfg.BufferPool.Capacity)
	require.Equal(t, "clock", cfg.BufferPool.Policy)
}

func TestLoad_MissingFile_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
