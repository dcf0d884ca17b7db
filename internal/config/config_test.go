package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 150*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("not a duration")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")), "negative durations are rejected")
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	d := Duration(45 * time.Second)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "45s", string(text))

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"45s"`, string(raw))
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 20, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, 60*time.Second, cfg.Orchestrator.CallTimeout.Duration())
	assert.False(t, cfg.Quality.Enabled)
	assert.Equal(t, "heuristic", cfg.Quality.Reviewer)
	assert.NotNil(t, cfg.Logging)
	assert.NotNil(t, cfg.Telemetry)

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero iterations", func(c *Config) { c.Orchestrator.MaxIterations = 0 }, "max_iterations"},
		{"zero concurrency", func(c *Config) { c.Orchestrator.MaxConcurrency = 0 }, "max_concurrency"},
		{"bad threshold", func(c *Config) { c.Quality.Enabled = true; c.Quality.Threshold = 1.3 }, "threshold"},
		{"bad reviewer", func(c *Config) { c.Quality.Enabled = true; c.Quality.Reviewer = "oracle" }, "reviewer"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
		{"disabled quality skips checks", func(c *Config) { c.Quality.Reviewer = "oracle" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_OrchestratorSettings(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Orchestrator.MaxIterations = 7
	cfg.Orchestrator.MaxConcurrency = 3
	cfg.Orchestrator.CallTimeout = Duration(10 * time.Second)
	cfg.Orchestrator.RetryMaxAttempts = 2

	settings := cfg.OrchestratorSettings()
	assert.Equal(t, 7, settings.MaxIterations)
	assert.Equal(t, 3, settings.Executor.MaxConcurrency)
	assert.Equal(t, 10*time.Second, settings.Executor.CallTimeout)
	assert.Equal(t, 2, settings.Executor.Retry.MaxAttempts)
	assert.Equal(t, cfg.Orchestrator.CompactAfter, settings.CompactAfter)
}
