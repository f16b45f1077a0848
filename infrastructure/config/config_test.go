package config

import (
	"os"
	"path/filepath"
	"testing"

	pkgerrors "inventory/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.True(t, cfg.Views.AutoRepair)
	assert.False(t, cfg.Views.PruneStale)
	assert.False(t, cfg.Views.SkipUnplaceableConnections)
	assert.Equal(t, 100, cfg.Views.LayoutStep)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	path := writeConfigFile(t, `
environment: staging
store: dynamodb
table_name: inventory-staging
log_level: debug
views:
  auto_repair: false
  prune_stale: true
  layout_step: 150
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("VIEWS_SKIP_UNPLACEABLE_CONNECTIONS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, StoreDynamoDB, cfg.Store)
	assert.Equal(t, "inventory-staging", cfg.DynamoDBTable)
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over the file")
	assert.False(t, cfg.Views.AutoRepair)
	assert.True(t, cfg.Views.PruneStale)
	assert.True(t, cfg.Views.SkipUnplaceableConnections)
	assert.Equal(t, 150, cfg.Views.LayoutStep)
	assert.Equal(t, "ParentIndex", cfg.IndexName, "unset keys keep their default")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "unknown store", file: "store: redis\n"},
		{name: "unknown level", file: "log_level: loud\n"},
		{name: "layout step", file: "views:\n  layout_step: 0\n"},
		{name: "dynamodb without table", file: "store: dynamodb\ntable_name: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", writeConfigFile(t, tt.file))

			_, err := LoadConfig()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}
