package observability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"INFO", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("console format", func(t *testing.T) {
		logger := NewLogger(LoggingConfig{Level: "warn", Format: "console", Output: "stderr"})
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := DefaultLoggingConfig()
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "json", cfg.Format)
	})
}

func TestContextHelpers(t *testing.T) {
	logger := NewLogger(DefaultLoggingConfig())

	// These only attach fields; just verify they return usable loggers.
	l := WithWorkflowContext(logger, "wf-1", "org-1")
	assert.NotPanics(t, func() { l.Info().Msg("workflow context") })

	l = WithGateContext(logger, "competitor", "seed_keywords")
	assert.NotPanics(t, func() { l.Info().Msg("gate context") })

	l = WithArticleContext(logger, "art-1", "unit-1")
	assert.NotPanics(t, func() { l.Info().Msg("article context") })
}
