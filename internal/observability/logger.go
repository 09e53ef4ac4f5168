// Package observability provides the process-wide structured logger.
//
// The bridge logs through a single zap logger configured once at startup.
// CLILogger is never nil: before Init it falls back to a console logger at
// info level so early startup paths can log safely.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles. STRUCTURED emits JSON lines for machine consumption;
// CONSOLE emits human-readable output for interactive use.
const (
	ProfileStructured = "STRUCTURED"
	ProfileConsole    = "CONSOLE"
)

// CLILogger is the shared logger for commands and long-running services.
var CLILogger = mustConsoleLogger("info")

// Init replaces CLILogger according to the configured level and profile.
func Init(level, profile string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToUpper(strings.TrimSpace(profile)) {
	case ProfileStructured, "":
		cfg = zap.NewProductionConfig()
	case ProfileConsole:
		cfg = zap.NewDevelopmentConfig()
	default:
		return fmt.Errorf("unknown logging profile: %s", profile)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Safe to call on shutdown paths.
func Sync() {
	_ = CLILogger.Sync()
}

func mustConsoleLogger(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
