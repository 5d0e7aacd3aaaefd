package testing

import (
	"io"
	"testing"
	"time"

	"roadscan-server-go/internal/platform/config"
	"roadscan-server-go/internal/platform/logging"
	"roadscan-server-go/internal/utils"
)

// SetupTestConfig returns defaults tuned for tests: no cosmetic delay,
// in-memory store and a companion root under t.TempDir().
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Log = config.LogConfig{
		Level: "DEBUG",
		Dir:   t.TempDir(),
		File:  "test.log",
	}
	cfg.Store.Driver = config.DriverMemory
	cfg.Companion.Root = t.TempDir()
	cfg.Model.WeightsPath = ""
	cfg.Model.CreateDir = false
	cfg.Processing.DelayMin = 0
	cfg.Processing.DelayMax = 0
	cfg.Processing.SessionTTL = time.Minute
	cfg.Web.StaticDir = ""

	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

// SetupTaggedLogger is SetupTestLogger for packages that take *utils.Logger directly.
func SetupTaggedLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return SetupTestLogger(t).Legacy()
}
