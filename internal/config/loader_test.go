package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig puts a config file into the allowed directory under a
// fake home.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "agentd")
	require.NoError(t, os.MkdirAll(configDir, 0700))

	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	configPath := writeTestConfig(t, `orchestrator:
  max_iterations: 5
  max_concurrency: 4
  call_timeout: 30s

provider:
  model: gpt-4o
  temperature: 0.5

quality:
  enabled: true
  threshold: 0.8
  reviewer: heuristic
`)

	cfg, err := LoadWithFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 4, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.CallTimeout.Duration())
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, 0.5, cfg.Provider.Temperature)
	assert.True(t, cfg.Quality.Enabled)
	assert.Equal(t, 0.8, cfg.Quality.Threshold)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Orchestrator.CompactAfter)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	configPath := writeTestConfig(t, `orchestrator:
  max_iterations: 5
`)

	t.Setenv("AGENTD_ORCHESTRATOR_MAX_ITERATIONS", "12")
	t.Setenv("AGENTD_PROVIDER_MODEL", "gpt-4o-mini")

	cfg, err := LoadWithFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Orchestrator.MaxIterations, "environment beats the file")
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 20, cfg.Orchestrator.MaxIterations)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	configPath := writeTestConfig(t, "orchestrator: [broken\n")

	_, err := LoadWithFile(configPath)
	assert.Error(t, err)
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	configPath := writeTestConfig(t, `orchestrator:
  max_iterations: -1
`)

	_, err := LoadWithFile(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iterations")
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0600))

	_, err := LoadWithFile(outside)
	assert.Error(t, err)
}

func TestLoadWithFile_RejectsWeakPermissions(t *testing.T) {
	configPath := writeTestConfig(t, "orchestrator:\n  max_iterations: 5\n")
	require.NoError(t, os.Chmod(configPath, 0644))

	_, err := LoadWithFile(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "agentd"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
