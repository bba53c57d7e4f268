// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/memstore"
	"github.com/passgate/passgate/internal/auth/postgres"
	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/internal/mail"
	"github.com/passgate/passgate/internal/observability"
	"github.com/passgate/passgate/internal/store"
)

// readinessTimeout bounds each readiness ping.
const readinessTimeout = 2 * time.Second

// Backend is an opened storage backend.
type Backend struct {
	Users auth.UserRepository
	Otps  auth.OtpRepository
	Ready func() bool
	Close func()
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// BackendFactory opens the configured storage backend.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Backend, error)

	// MailerFactory builds the reset code mailer.
	// Default: newMailer
	MailerFactory func(cfg config.MailConfig, logger *slog.Logger) (auth.Mailer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// Listen opens the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// OnListening is called with the bound API address once serving.
	OnListening func(addr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.BackendFactory == nil {
		out.BackendFactory = openBackend
	}
	if out.MailerFactory == nil {
		out.MailerFactory = newMailer
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	if out.OnListening == nil {
		out.OnListening = func(string) {}
	}
	return &out
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// openBackend connects to the configured driver. For postgres it applies
// pending migrations first when auto_migrate is set.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Backend, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, data is lost on exit")
		s := memstore.New()
		return &Backend{Users: s.Users(), Otps: s.Otps(), Ready: s.Ready, Close: func() {}}, nil
	}

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.URL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := store.Connect(ctx, cfg.URL, store.DefaultConnectConfig())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")
	return &Backend{
		Users: postgres.NewUserRepository(pool),
		Otps:  postgres.NewOtpRepository(pool),
		Ready: store.Readiness(pool, readinessTimeout),
		Close: pool.Close,
	}, nil
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	logger.Info("applying migrations", "count", len(pending))
	return m.Up()
}

// newMailer returns the SMTP mailer, or the log mailer for local use.
func newMailer(cfg config.MailConfig, logger *slog.Logger) (auth.Mailer, error) {
	if cfg.Driver == config.MailLog {
		return mail.NewLogMailer(logger), nil
	}
	m, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.Sender(),
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
