package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/taigrr/pedometer/config"
)

const defaultDashboardLog = "~/.pedometer/pedometer.log"

// logOutput picks where logs go. The dashboard owns the terminal, so it
// always logs to a file.
func logOutput(cfg config.LoggingConfig, headless bool) (io.Writer, func() error, error) {
	path := cfg.File
	if path == "" && !headless {
		path = defaultDashboardLog
	}
	if path == "" {
		return os.Stderr, func() error { return nil }, nil
	}

	path, err := config.ExpandHome(path)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f.Close, nil
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "console" {
		_, isFile := out.(*os.File)
		noColor := isFile && out != os.Stderr && out != os.Stdout
		return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: noColor}).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
