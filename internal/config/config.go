// Package config provides configuration loading for agentd.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/agentd/internal/executor"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/orchestrator"
	"github.com/fyrsmithlabs/agentd/internal/quality"
	"github.com/fyrsmithlabs/agentd/internal/telemetry"
)

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the complete agentd configuration.
type Config struct {
	Logging      *logging.Config    `koanf:"logging"`
	Telemetry    *telemetry.Config  `koanf:"telemetry"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Provider     ProviderConfig     `koanf:"provider"`
	Quality      QualityConfig      `koanf:"quality"`
}

// OrchestratorConfig is the loop and executor configuration.
type OrchestratorConfig struct {
	MaxIterations    int      `koanf:"max_iterations"`
	MaxConcurrency   int      `koanf:"max_concurrency"`
	CallTimeout      Duration `koanf:"call_timeout"`
	RetryMaxAttempts int      `koanf:"retry_max_attempts"`
	CompactAfter     int      `koanf:"compact_after"`
	CompactMaxLen    int      `koanf:"compact_max_len"`
}

// ProviderConfig selects and tunes the decision provider.
type ProviderConfig struct {
	// Model is the model identifier passed to the provider.
	Model string `koanf:"model"`

	// BaseURL overrides the provider endpoint. Works for the OpenAI API
	// and any OpenAI-compatible server.
	BaseURL string `koanf:"base_url"`

	// Temperature is the sampling temperature for decision calls.
	Temperature float64 `koanf:"temperature"`

	// RatePerSecond caps decision calls; zero disables the limiter.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// QualityConfig configures the optional quality gate.
type QualityConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Threshold      float64 `koanf:"threshold"`
	MaxRefinements int     `koanf:"max_refinements"`

	// Reviewer selects "heuristic" (deterministic) or "model".
	Reviewer string `koanf:"reviewer"`
}

// NewDefaultConfig returns a configuration with production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Logging:   logging.NewDefaultConfig(),
		Telemetry: telemetry.NewDefaultConfig(),
		Orchestrator: OrchestratorConfig{
			MaxIterations:    20,
			MaxConcurrency:   8,
			CallTimeout:      Duration(60 * time.Second),
			RetryMaxAttempts: 1,
			CompactAfter:     3,
			CompactMaxLen:    2048,
		},
		Provider: ProviderConfig{
			Temperature: 0.2,
		},
		Quality: QualityConfig{
			Enabled:        false,
			Threshold:      quality.DefaultThreshold,
			MaxRefinements: quality.DefaultMaxRefinements,
			Reviewer:       "heuristic",
		},
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	if c.Orchestrator.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator: max_iterations must be positive")
	}
	if c.Orchestrator.MaxConcurrency <= 0 {
		return fmt.Errorf("orchestrator: max_concurrency must be positive")
	}
	if c.Quality.Enabled {
		if c.Quality.Threshold <= 0 || c.Quality.Threshold > 1 {
			return fmt.Errorf("quality: threshold must be in (0,1]")
		}
		if c.Quality.Reviewer != "heuristic" && c.Quality.Reviewer != "model" {
			return fmt.Errorf("quality: reviewer must be heuristic or model, got %q", c.Quality.Reviewer)
		}
	}
	return nil
}

// OrchestratorSettings maps the loaded values onto the orchestrator config.
func (c *Config) OrchestratorSettings() orchestrator.Config {
	return orchestrator.Config{
		MaxIterations: c.Orchestrator.MaxIterations,
		CompactAfter:  c.Orchestrator.CompactAfter,
		CompactMaxLen: c.Orchestrator.CompactMaxLen,
		Executor: executor.Config{
			MaxConcurrency: c.Orchestrator.MaxConcurrency,
			CallTimeout:    c.Orchestrator.CallTimeout.Duration(),
			Retry: executor.RetryPolicy{
				MaxAttempts: c.Orchestrator.RetryMaxAttempts,
			},
		},
	}
}
