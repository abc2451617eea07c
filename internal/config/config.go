// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config loads the daemon's YAML configuration.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config values read as "12h" or
// "90s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return errors.Trace(err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.NotValidf("duration %q", raw)
	}
	d.Duration = parsed
	return nil
}

// Mongo names the MongoDB deployment to use.
type Mongo struct {
	Addrs    []string `yaml:"addrs"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

// Admin optionally bootstraps a reviewer account at startup.
type Admin struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Config is the daemon configuration.
type Config struct {
	// ListenAddr is the HTTP bind address, host:port.
	ListenAddr string `yaml:"listen-addr"`

	Mongo Mongo `yaml:"mongo"`

	// TokenSecret signs session tokens. Required; there is no
	// generated default, a restart must not invalidate sessions.
	TokenSecret string `yaml:"token-secret"`

	// SessionTTL bounds session tokens; 12h when unset.
	SessionTTL Duration `yaml:"session-ttl,omitempty"`

	// RequireRegisterCode demands a 6-digit code at signup.
	RequireRegisterCode bool `yaml:"require-register-code,omitempty"`

	// StatisticsMaxAge bounds report cache staleness; 1m when unset.
	StatisticsMaxAge Duration `yaml:"statistics-max-age,omitempty"`

	// LoggingConfig is a loggo specification, e.g.
	// "<root>=INFO;teamsync.state=DEBUG".
	LoggingConfig string `yaml:"logging-config,omitempty"`

	// BootstrapAdmin, when set, is created at startup if absent.
	BootstrapAdmin *Admin `yaml:"bootstrap-admin,omitempty"`
}

const (
	defaultListenAddr = ":8017"
	defaultSessionTTL = 12 * time.Hour
)

// Read loads and validates the configuration at path.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "cannot read config %q", path)
	}
	cfg := &Config{ListenAddr: defaultListenAddr}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Annotatef(err, "cannot parse config %q", path)
	}
	if cfg.SessionTTL.Duration == 0 {
		cfg.SessionTTL.Duration = defaultSessionTTL
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.NotValidf("empty listen-addr")
	}
	if len(cfg.Mongo.Addrs) == 0 {
		return errors.NotValidf("empty mongo.addrs")
	}
	if cfg.Mongo.Database == "" {
		return errors.NotValidf("empty mongo.database")
	}
	if cfg.TokenSecret == "" {
		return errors.NotValidf("empty token-secret")
	}
	if cfg.SessionTTL.Duration < 0 {
		return errors.NotValidf("negative session-ttl")
	}
	if cfg.StatisticsMaxAge.Duration < 0 {
		return errors.NotValidf("negative statistics-max-age")
	}
	if a := cfg.BootstrapAdmin; a != nil {
		if a.Name == "" || a.Email == "" || a.Password == "" {
			return errors.NotValidf("incomplete bootstrap-admin")
		}
	}
	return nil
}
