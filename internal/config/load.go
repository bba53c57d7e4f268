// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every passgate environment variable.
// PASSGATE_MAIL__HOST sets mail.host.
const EnvPrefix = "PASSGATE_"

// legacyEnv maps the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"JWT_SECRET":         "auth.jwt_secret",
	"GMAIL_USER":         "mail.username",
	"GMAIL_APP_PASSWORD": "mail.password",
	"PORT":               "http.port",
	"DATABASE_URL":       "database.url",
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"http.cors_origins": true,
}

// Sources names the optional inputs layered over the defaults.
type Sources struct {
	// File is a YAML config file.
	File string
	// EnvFile is a dotenv file loaded into the process environment first.
	// Variables already set are not overridden.
	EnvFile string
	// Flags are applied last. Only flags named in FlagKeys are read.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys.
	FlagKeys map[string]string
}

// Load builds a Config from defaults, File, the environment, and Flags, in
// increasing precedence. The result is not validated.
func Load(src Sources) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(defaultsProvider{}, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if src.File != "" {
		if err := k.Load(file.Provider(src.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", src.File).
				Wrap(err)
		}
	}

	if src.EnvFile != "" {
		if err := godotenv.Load(src.EnvFile); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "env file").
				With("path", src.EnvFile).
				Wrap(err)
		}
	}

	legacy := env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key, ok := legacyEnv[name]
		if !ok || value == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}

	prefixed := env.ProviderWithValue(EnvPrefix, ".", func(name, value string) (string, any) {
		key := envKey(name)
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if src.Flags != nil {
		flags := posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := src.FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(src.Flags, f)
		})
		if err := k.Load(flags, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns PASSGATE_AUTH__JWT_SECRET into auth.jwt_secret.
func envKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// defaultsProvider feeds Default() to koanf as a nested map.
type defaultsProvider struct{}

func (defaultsProvider) ReadBytes() ([]byte, error) {
	return nil, oops.Errorf("defaults provider does not support ReadBytes")
}

func (defaultsProvider) Read() (map[string]any, error) {
	d := Default()
	return map[string]any{
		"http": map[string]any{
			"host":         d.HTTP.Host,
			"port":         d.HTTP.Port,
			"cors_origins": d.HTTP.CORSOrigins,
		},
		"database": map[string]any{
			"driver":       d.Database.Driver,
			"url":          d.Database.URL,
			"auto_migrate": d.Database.AutoMigrate,
		},
		"auth": map[string]any{
			"jwt_secret":     d.Auth.JWTSecret,
			"token_ttl":      d.Auth.TokenTTL,
			"otp_ttl":        d.Auth.OTPTTL,
			"otp_retention":  d.Auth.OTPRetention,
			"sweep_interval": d.Auth.SweepInterval,
		},
		"mail": map[string]any{
			"driver":   d.Mail.Driver,
			"host":     d.Mail.Host,
			"port":     d.Mail.Port,
			"username": d.Mail.Username,
			"password": d.Mail.Password,
			"from":     d.Mail.From,
			"timeout":  d.Mail.Timeout,
		},
		"log":     map[string]any{"format": d.Log.Format},
		"metrics": map[string]any{"addr": d.Metrics.Addr},
	}, nil
}
