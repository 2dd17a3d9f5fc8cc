package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evidex.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[source]
input_path = "telemetry.ndjson"
schema_dir = "schemas"

[storage]
archive_path = "data/archive"
index_path = "data/index"

[ingestion]
workers = 8
batch_size = 500

[query]
batch_size = 64
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "telemetry.ndjson", cfg.Source.InputPath)
	require.Equal(t, 8, cfg.Ingestion.Workers)
	require.Equal(t, 500, cfg.Ingestion.BatchSize)
	require.Equal(t, 64, cfg.Query.BatchSize)
	// Fields left unset in the TOML file keep their defaults.
	require.Equal(t, "", cfg.Ingestion.ProgressFile)
	require.Equal(t, true, cfg.Ingestion.SaveIndexes)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.InputPath = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Storage.ArchivePath = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Storage.IndexPath = ""
	require.Error(t, cfg.Validate())
}

func TestFindConfigFileSearchesWorkingDirectoryFirst(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)

	require.NoError(t, os.Chdir(dir))
	require.NoError(t, os.WriteFile("evidex.toml", []byte(""), 0o644))

	found, err := FindConfigFile()
	require.NoError(t, err)
	require.Equal(t, "evidex.toml", found)
}

func TestFindConfigFileErrorsWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)

	require.NoError(t, os.Chdir(dir))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nonexistent-xdg"))

	_, err = FindConfigFile()
	require.Error(t, err)
}
