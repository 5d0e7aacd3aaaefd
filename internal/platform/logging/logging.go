package logging

import (
	"fmt"
	"io"
	"log/slog"

	"roadscan-server-go/internal/utils"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	Console  io.Writer
}

// Logger provides access to both the tagged and slog logging APIs.
type Logger struct {
	legacy *utils.Logger
}

func New(cfg Config) (*Logger, error) {
	legacy, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.Filename,
		Console:  cfg.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return &Logger{legacy: legacy}, nil
}

// Legacy exposes the tagged logger used across domain packages.
func (l *Logger) Legacy() *utils.Logger {
	return l.legacy
}

func (l *Logger) Slog() *slog.Logger {
	return l.legacy.Slog()
}

func (l *Logger) Close() error {
	return l.legacy.Close()
}
