// ABOUTME: Log backend writing to stdout and a rotated log file
// ABOUTME: Stdout is dropped while the TUI owns the terminal
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

type logBackend struct {
	stdOut     io.Writer
	logRotator *rotator.Rotator
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.stdOut != nil {
		bknd.stdOut.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}

	return len(b), nil
}

func (bknd *logBackend) Close() error {
	if bknd.logRotator != nil {
		return bknd.logRotator.Close()
	}
	return nil
}

// loggers holds one logger per subsystem, all at the same level
type loggers struct {
	backend *logBackend
	level   slog.Level
	slog    *slog.Backend
}

func newLoggers(cfg *settings) (*loggers, error) {
	bknd := &logBackend{}
	if !cfg.TUI {
		bknd.stdOut = os.Stdout
	}
	if cfg.LogFile != "" {
		logDir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logRotator, err := rotator.New(cfg.LogFile, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
		bknd.logRotator = logRotator
	}

	level, ok := slog.LevelFromString(cfg.DebugLevel)
	if !ok {
		bknd.Close()
		return nil, fmt.Errorf("unknown log level %q", cfg.DebugLevel)
	}

	return &loggers{
		backend: bknd,
		level:   level,
		slog:    slog.NewBackend(bknd),
	}, nil
}

// logger returns the logger for a subsystem tag such as "DEVC"
func (l *loggers) logger(subsys string) slog.Logger {
	log := l.slog.Logger(subsys)
	log.SetLevel(l.level)
	return log
}

func (l *loggers) Close() error { return l.backend.Close() }
