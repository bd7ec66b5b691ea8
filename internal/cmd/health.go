package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trendrelay/trendrelay/internal/config"
	errwrap "github.com/trendrelay/trendrelay/internal/errors"
	"github.com/trendrelay/trendrelay/internal/message"
	"github.com/trendrelay/trendrelay/internal/observability"
	"github.com/trendrelay/trendrelay/internal/relay"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the configuration loads, the formatter works and the default channel has a destination.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := loadConfig(cmd)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid",
			zap.Int("port", cfg.Server.Port),
			zap.Int("rate_limit_max", cfg.RateLimit.Max),
			zap.Duration("rate_limit_window", cfg.RateLimit.Window))

		now := time.Now()
		if !strings.HasSuffix(message.Format(message.Payload{}, now), message.FormatReceivedAt(now)) {
			ExitWithCode(logger, foundry.ExitFailure, "Formatter self test failed", errwrap.NewInternalError("formatter produced no receipt line"))
			return
		}
		logger.Info("✅ Formatter ready", zap.String("zone", message.ReceiptZone.String()))

		svc, _ := newRelay(cfg, nil)
		ch, _ := svc.Channel(relay.DefaultChannel)
		if ch.URL == "" {
			err := errwrap.NewConfigInvalidError(fmt.Sprintf("default channel has no webhook url; set %sWEBHOOK_URL", config.EnvPrefix))
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Webhook not configured", err)
			return
		}
		logger.Info("✅ Default channel configured", zap.Int("channels", len(svc.Channels())))

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
