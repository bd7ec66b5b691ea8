package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"go.uber.org/zap"

	"github.com/trendrelay/trendrelay/internal/observability"
)

func TestLoggerInitialization(t *testing.T) {
	originalCLI, originalServer := observability.CLILogger, observability.ServerLogger
	t.Cleanup(func() {
		observability.CLILogger = originalCLI
		observability.ServerLogger = originalServer
	})

	t.Run("CLI logger", func(t *testing.T) {
		observability.ServerLogger = nil
		observability.InitCLILogger("trendrelay-test", true)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}
		if observability.Logger() != observability.CLILogger {
			t.Fatal("Logger() should fall back to the CLI logger")
		}
		observability.CLILogger.Debug("cli logger ready", zap.String("test", "value"))
	})

	t.Run("Server logger", func(t *testing.T) {
		observability.InitServerLogger("trendrelay-test", "debug", "trendrelay")

		if observability.ServerLogger == nil {
			t.Fatal("Server logger should not be nil after initialization")
		}
		if observability.Logger() != observability.ServerLogger {
			t.Fatal("Logger() should prefer the server logger")
		}
		observability.ServerLogger.Info("server logger ready",
			zap.String("channel", "default"),
			zap.Int("status", 200))
	})
}

func TestCrucibleVersionAvailable(t *testing.T) {
	version := crucible.GetVersion()
	if version.Gofulmen == "" {
		t.Error("Gofulmen version should not be empty")
	}
}
