package app

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for in, want := range cases {
		lvl, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, lvl, in)
	}

	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"", "text", "json", "JSON"} {
		log, err := newLogger("info", format)
		require.NoError(t, err, format)
		assert.NotNil(t, log)
	}

	_, err := newLogger("info", "xml")
	assert.Error(t, err)
}
