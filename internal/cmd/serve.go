package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/trendrelay/trendrelay/internal/config"
	errwrap "github.com/trendrelay/trendrelay/internal/errors"
	"github.com/trendrelay/trendrelay/internal/metrics"
	"github.com/trendrelay/trendrelay/internal/observability"
	"github.com/trendrelay/trendrelay/internal/ratelimit"
	"github.com/trendrelay/trendrelay/internal/relay"
	"github.com/trendrelay/trendrelay/internal/server"
	"github.com/trendrelay/trendrelay/internal/server/handlers"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// webhookHealthChecker reports not ready while the default channel has no destination.
type webhookHealthChecker struct {
	svc *relay.Service
}

func (w webhookHealthChecker) CheckHealth(ctx context.Context) error {
	ch, ok := w.svc.Channel(relay.DefaultChannel)
	if !ok || ch.URL == "" {
		return errwrap.NewConfigInvalidError("default channel has no webhook url")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	Long: `Start the relay HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload config file, channels and rate limits

With --watch-config the config file is also reloaded whenever it changes on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}
		observability.InitServerLogger(config.AppName, logLevel, config.AppName)
		logger := observability.ServerLogger

		hm := handlers.NewHealthManager(versionInfo.Version)

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		svc, limiter := newRelay(cfg, nil)
		hm.RegisterChecker("webhook", webhookHealthChecker{svc: svc})
		if ch, _ := svc.Channel(relay.DefaultChannel); ch.URL == "" {
			logger.Warn("No webhook url configured for the default channel; set " + config.EnvPrefix + "WEBHOOK_URL")
		}

		srv := server.New(cfg.Server.Host, cfg.Server.Port, server.Dependencies{
			Relayer:    svc,
			Health:     hm,
			AdminToken: cfg.Admin.Token,
			Timeouts: server.Timeouts{
				Read:  cfg.Server.ReadTimeout,
				Write: cfg.Server.WriteTimeout,
				Idle:  cfg.Server.IdleTimeout,
			},
		})

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("rate_limit_max", cfg.RateLimit.Max),
			zap.Duration("rate_limit_window", cfg.RateLimit.Window),
			zap.Strings("channels", cfg.ChannelNames()))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the HTTP server stops first, the logger flushes last.
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Metrics exporter stop returned error", zap.Error(err))
			}
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			return reloadRelayConfig(ctx, svc, limiter)
		})

		if watch, _ := cmd.Flags().GetBool("watch-config"); watch {
			watchConfigFile(cmd.Context(), viper.GetViper(), svc, limiter)
		}

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// signals exits the process once the shutdown handlers have run.
		errChan := make(chan error, 2)
		go func() {
			metrics.SetServerStartTime(time.Now().Unix())
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}
		return nil
	},
}

// reloadRelayConfig re-reads the config file and applies channels and limits.
// On any error the running configuration is left untouched.
func reloadRelayConfig(ctx context.Context, svc *relay.Service, limiter *ratelimit.SlidingWindow) error {
	logger := observability.Logger()
	logger.Info("Reloading configuration")

	v := viper.GetViper()
	if err := config.Reread(v); err != nil {
		logger.Error("Failed to reload config file",
			zap.String("file", v.ConfigFileUsed()),
			zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	cfg, err := config.Load(v)
	if err != nil {
		logger.Error("Reloaded configuration is invalid", zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	applyRelayConfig(cfg, svc, limiter)
	logger.Info("Configuration reloaded",
		zap.String("file", v.ConfigFileUsed()),
		zap.Int("rate_limit_max", cfg.RateLimit.Max),
		zap.Duration("rate_limit_window", cfg.RateLimit.Window),
		zap.String("channels", fmt.Sprint(cfg.ChannelNames())))
	return nil
}

// watchConfigFile reloads the relay whenever the config file is written.
// Editors often emit several events per save; each one triggers a full reload,
// which is idempotent.
func watchConfigFile(ctx context.Context, v *viper.Viper, svc *relay.Service, limiter *ratelimit.SlidingWindow) {
	logger := observability.Logger()
	if v.ConfigFileUsed() == "" {
		logger.Warn("--watch-config ignored: no config file in use")
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Debug("Config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		// Errors are logged inside; the previous configuration stays active.
		_ = reloadRelayConfig(ctx, svc, limiter)
	})
	v.WatchConfig()
	logger.Info("Watching config file", zap.String("file", v.ConfigFileUsed()))
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (default 0.0.0.0)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (default 3000, or $PORT)")
	serveCmd.Flags().Bool("watch-config", false, "reload the config file when it changes")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
