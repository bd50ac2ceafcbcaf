package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the application logger writing to w. Unknown levels fall
// back to info.
func NewLogger(cfg *Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if cfg.LogFormat != "json" {
		_, isFile := w.(*os.File)
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC822,
			NoColor:    isFile && w != os.Stderr && w != os.Stdout,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// OpenLogFile opens the append-only log in the data directory. The TUI owns
// the terminal, so interactive sessions log here instead of to stderr.
func OpenLogFile(dataDir string) (*os.File, error) {
	logPath := filepath.Join(dataDir, "wikichat.log")

	// 0600 - may contain conversation snippets
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	return f, nil
}
