package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "agentd", cfg.Fields["service"])
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"valid json", "debug", "json", false},
		{"valid console", "warn", "console", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Level: tt.level, Format: tt.format}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Debug("smoke test")
}

func TestNewLogger_NilConfigUsesDefaults(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	_, err := NewLogger(&Config{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
