// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/httpapi"
	"github.com/passgate/passgate/internal/logging"
	"github.com/passgate/passgate/internal/observability"
)

const serviceName = "passgate"

// shutdownTimeout bounds graceful shutdown of the listeners.
const shutdownTimeout = 5 * time.Second

// serveFlagKeys maps serve flags to config keys.
var serveFlagKeys = map[string]string{
	"host":         "http.host",
	"port":         "http.port",
	"db-driver":    "database.driver",
	"database-url": "database.url",
	"mail-driver":  "mail.driver",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API, the metrics and health listener, and the
background sweep of expired reset codes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, serveFlagKeys)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd.ErrOrStderr(), nil)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("host", defaults.HTTP.Host, "API listen host")
	cmd.Flags().Int("port", defaults.HTTP.Port, "API listen port")
	cmd.Flags().String("db-driver", defaults.Database.Driver, "storage driver (postgres or memory)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("mail-driver", defaults.Mail.Driver, "mail driver (smtp or log)")
	cmd.Flags().String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaults.Log.Format, "log format (json or text)")

	return cmd
}

// runServeWithDeps runs the server until ctx is cancelled or a listener
// fails. Logs go to logOut. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, logOut io.Writer, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, logOut)
	slog.SetDefault(logger)

	logger.Info("starting passgate",
		"addr", cfg.HTTP.Addr(),
		"db_driver", cfg.Database.Driver,
		"mail_driver", cfg.Mail.Driver,
	)

	backend, err := deps.BackendFactory(ctx, cfg.Database, logger)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer backend.Close()

	mailer, err := deps.MailerFactory(cfg.Mail, logger)
	if err != nil {
		return oops.With("operation", "create mailer").Wrap(err)
	}

	issuer, err := auth.NewJWTIssuer(cfg.Auth.JWTSecret, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return err
	}

	svc, err := auth.NewService(backend.Users, backend.Otps, auth.NewArgon2idHasher(), issuer, mailer,
		auth.WithLogger(logger),
		auth.WithOTPTTL(cfg.Auth.OTPTTL),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ready)
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	api, err := httpapi.NewServer(svc, issuer,
		httpapi.WithLogger(logger),
		httpapi.WithRecorder(metrics),
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins...),
	)
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	listener, err := deps.Listen("tcp", cfg.HTTP.Addr())
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr()).Wrap(err)
	}
	httpServer := httpapi.NewHTTPServer(cfg.HTTP.Addr(), api.Handler())

	apiErrChan := make(chan error, 1)
	go func() {
		defer close(apiErrChan)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrChan <- serveErr
		}
	}()

	var workers sync.WaitGroup
	if cfg.Auth.SweepInterval > 0 {
		sweeper, sweepErr := auth.NewSweeper(backend.Otps,
			auth.WithRetention(cfg.Auth.OTPRetention),
			auth.WithInterval(cfg.Auth.SweepInterval),
			auth.WithSweeperLogger(logger),
			auth.WithSweptHook(metrics.RecordSwept),
		)
		if sweepErr != nil {
			cancel()
			shutdown(logger, httpServer, obsServer)
			return sweepErr
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Run(ctx)
		}()
	}

	logger.Info("api listening", "addr", listener.Addr().String())
	deps.OnListening(listener.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
	case serveErr, ok := <-apiErrChan:
		if ok {
			runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
		}
		cancel()
	}
	logger.Info("shutting down...")

	shutdown(logger, httpServer, obsServer)
	workers.Wait()

	logger.Info("shutdown complete")
	return runErr
}

func shutdown(logger *slog.Logger, httpServer *http.Server, obsServer ObservabilityServer) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

func stopObservability(obsServer ObservabilityServer) {
	if obsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
