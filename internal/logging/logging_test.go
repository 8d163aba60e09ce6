package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/prn-tf/amethyst-cdn/internal/config"
)

func TestWriter(t *testing.T) {
	assert.Equal(t, os.Stdout, Writer(config.LoggingConfig{Output: "stdout"}))
	assert.Equal(t, os.Stdout, Writer(config.LoggingConfig{}))
	assert.Equal(t, os.Stderr, Writer(config.LoggingConfig{Output: "stderr"}))

	path := filepath.Join(t.TempDir(), "logs", "cdn.log")
	w := Writer(config.LoggingConfig{Output: path, MaxSizeMB: 10})
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, lj.Filename)
	assert.Equal(t, 10, lj.MaxSize)
}

func TestNew_FileOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	path := filepath.Join(t.TempDir(), "cdn.log")
	logger := New(config.LoggingConfig{Level: "warn", Format: "json", Output: path, MaxSizeMB: 1})

	logger.Info().Msg("hidden")
	logger.Warn().Str("service", "test").Msg("visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"service":"test"`)
	assert.Contains(t, string(data), `"message":"visible"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logger := New(config.LoggingConfig{Level: "loud", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
