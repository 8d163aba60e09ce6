// Package logging builds the root zerolog logger from configuration.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/prn-tf/amethyst-cdn/internal/config"
)

// New creates the application logger.
// Output "stdout" and "stderr" select the process streams; any other value is
// treated as a file path and rotated with lumberjack.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := Writer(cfg)
	if cfg.Format == "console" {
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat, NoColor: !isTerminal(cfg.Output)}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Writer returns the raw destination for log lines.
func Writer(cfg config.LoggingConfig) io.Writer {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

func isTerminal(output string) bool {
	if output != "" && output != "stdout" && output != "stderr" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
