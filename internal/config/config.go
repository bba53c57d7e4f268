// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package config loads and validates the passgate configuration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Mail drivers.
const (
	MailSMTP = "smtp"
	MailLog  = "log"
)

// MinJWTSecretBytes is the shortest accepted signing secret.
const MinJWTSecretBytes = 16

// Config is the full server configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
	Mail     MailConfig     `koanf:"mail" json:"mail,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Host        string   `koanf:"host" json:"host,omitempty" jsonschema:"description=Listen host; empty binds all interfaces"`
	Port        int      `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	CORSOrigins []string `koanf:"cors_origins" json:"cors_origins,omitempty" jsonschema:"description=Allowed browser origins as glob patterns"`
}

// Addr returns the host:port listen address.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver      string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
	URL         string `koanf:"url" json:"url,omitempty"`
	AutoMigrate bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// AuthConfig holds token and reset code settings.
type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret" json:"jwt_secret,omitempty"`
	TokenTTL      time.Duration `koanf:"token_ttl" json:"token_ttl,omitempty"`
	OTPTTL        time.Duration `koanf:"otp_ttl" json:"otp_ttl,omitempty"`
	OTPRetention  time.Duration `koanf:"otp_retention" json:"otp_retention,omitempty"`
	SweepInterval time.Duration `koanf:"sweep_interval" json:"sweep_interval,omitempty" jsonschema:"description=Zero disables the background sweep"`
}

// MailConfig configures reset code delivery.
type MailConfig struct {
	Driver   string        `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=smtp,enum=log"`
	Host     string        `koanf:"host" json:"host,omitempty"`
	Port     int           `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	Username string        `koanf:"username" json:"username,omitempty"`
	Password string        `koanf:"password" json:"password,omitempty"`
	From     string        `koanf:"from" json:"from,omitempty"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout,omitempty"`
}

// Sender returns the From address, falling back to the SMTP user.
func (c MailConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// LogConfig selects the log output format.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics and health listen address; empty disables"`
}

// Default returns the compiled defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:        5000,
			CORSOrigins: []string{"http://localhost:*"},
		},
		Database: DatabaseConfig{
			Driver:      DriverPostgres,
			AutoMigrate: true,
		},
		Auth: AuthConfig{
			TokenTTL:      time.Hour,
			OTPTTL:        10 * time.Minute,
			OTPRetention:  24 * time.Hour,
			SweepInterval: 15 * time.Minute,
		},
		Mail: MailConfig{
			Driver:  MailSMTP,
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 15 * time.Second,
		},
		Log:     LogConfig{Format: "json"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
	}
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return invalid("http.port", "http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	for _, pattern := range c.HTTP.CORSOrigins {
		if _, err := glob.Compile(pattern); err != nil {
			return invalid("http.cors_origins", "invalid origin pattern %q: %v", pattern, err)
		}
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "database.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return invalid("database.driver", "database.driver must be 'postgres' or 'memory', got %q", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretBytes {
		return invalid("auth.jwt_secret", "auth.jwt_secret must be at least %d bytes", MinJWTSecretBytes)
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "auth.token_ttl must be positive")
	}
	if c.Auth.OTPTTL <= 0 {
		return invalid("auth.otp_ttl", "auth.otp_ttl must be positive")
	}
	if c.Auth.OTPRetention < 0 {
		return invalid("auth.otp_retention", "auth.otp_retention cannot be negative")
	}
	if c.Auth.SweepInterval < 0 {
		return invalid("auth.sweep_interval", "auth.sweep_interval cannot be negative")
	}

	switch c.Mail.Driver {
	case MailSMTP:
		if c.Mail.Host == "" {
			return invalid("mail.host", "mail.host is required for the smtp driver")
		}
		if c.Mail.Port < 1 || c.Mail.Port > 65535 {
			return invalid("mail.port", "mail.port must be between 1 and 65535, got %d", c.Mail.Port)
		}
		if c.Mail.Username == "" || c.Mail.Password == "" {
			return invalid("mail.username", "mail.username and mail.password are required for the smtp driver")
		}
		if c.Mail.Timeout <= 0 {
			return invalid("mail.timeout", "mail.timeout must be positive")
		}
	case MailLog:
	default:
		return invalid("mail.driver", "mail.driver must be 'smtp' or 'log', got %q", c.Mail.Driver)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}
