package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"inventory/application/migration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtures = "../../infrastructure/persistence/memory/testdata/inventory.yaml"

func execute(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	out := new(bytes.Buffer)
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	return out, cmd.Execute()
}

func TestRunCommand_DryRun(t *testing.T) {
	out, err := execute(t, "run", "--dry-run", "--fixtures", fixtures, "--store", "memory")
	require.NoError(t, err)

	var report migration.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.DocumentsScanned)
	assert.Equal(t, 1, report.DocumentsMigrated)
	assert.Zero(t, report.DocumentsCommitted)
}

func TestScanCommand(t *testing.T) {
	out, err := execute(t, "scan", "--fixtures", fixtures, "--store", "memory")
	require.NoError(t, err)

	var summary ScanSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, map[string]int{"1.1": 1}, summary.ByVersion)
}

func TestRunCommand_BadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("objects: [{class: Rack}]"), 0o600))

	_, err := execute(t, "run", "--fixtures", path, "--store", "memory")
	assert.Error(t, err)
}

func TestRunCommand_RejectsArguments(t *testing.T) {
	_, err := execute(t, "run", "extra")
	assert.Error(t, err)
}
