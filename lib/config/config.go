/*
 * RedisGate
 * Copyright (C) 2025  RedisGate Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package config assembles the gateway runtime configuration from a YAML
// file, environment variables and command line flags, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/redisgate/redisgate/lib/defaults"
	"github.com/redisgate/redisgate/lib/services"
	"github.com/redisgate/redisgate/lib/utils"
)

// Environment variables recognized by the gateway. Deployment platforms
// commonly inject these directly, so they override the config file.
const (
	// EnvDatabaseURL points the registry at the control-plane postgres.
	EnvDatabaseURL = "DATABASE_URL"
	// EnvJWTSecret is the token signing secret.
	EnvJWTSecret = "JWT_SECRET"
	// EnvRedisPassword is the fallback password for managed instances.
	EnvRedisPassword = "REDIS_DEFAULT_PASSWORD"
	// EnvPoolMaxSize bounds every per-instance connection pool.
	EnvPoolMaxSize = "POOL_MAX_SIZE"
	// EnvPoolWaitSeconds is the pool checkout timeout.
	EnvPoolWaitSeconds = "POOL_WAIT_SECONDS"
	// EnvCommandTimeoutSeconds bounds a command round-trip.
	EnvCommandTimeoutSeconds = "COMMAND_TIMEOUT_SECONDS"
	// EnvPort overrides the listen port, keeping the configured host.
	EnvPort = "PORT"
	// EnvLogLevel sets the log severity.
	EnvLogLevel = "LOG_LEVEL"
	// EnvLogFormat selects text or json log output.
	EnvLogFormat = "LOG_FORMAT"
)

// CommandLineFlags stores command line flag values, a much smaller subset of
// the gateway configuration which is fully expressed via the YAML file.
type CommandLineFlags struct {
	// --config flag
	ConfigFile string
	// --listen-addr flag
	ListenAddr string
	// -d/--debug flag
	Debug bool
}

// Config is the fully resolved gateway runtime configuration.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string
	// JWTSecret verifies bearer tokens. Required.
	JWTSecret []byte
	// DatabaseURL is the postgres registry connection string. When empty
	// the gateway serves the static Instances instead.
	DatabaseURL string
	// DefaultPassword authenticates Redis connections with no per-instance
	// secret.
	DefaultPassword string
	// PoolMaxSize bounds every per-instance connection pool.
	PoolMaxSize int
	// PoolWaitTimeout is the pool checkout timeout.
	PoolWaitTimeout time.Duration
	// CommandTimeout bounds a single command round-trip.
	CommandTimeout time.Duration
	// LogLevel is the minimum severity to log.
	LogLevel slog.Level
	// LogFormat is text or json.
	LogFormat string
	// Debug forces debug logging regardless of LogLevel.
	Debug bool
	// Instances are statically declared Redis instances backing the
	// registry when no database is configured.
	Instances []services.Instance
	// LocalPorts maps instance slugs to 127.0.0.1 ports for development
	// outside a cluster.
	LocalPorts map[string]int
}

// MakeDefaultConfig returns the hardcoded base configuration that file,
// environment and flag values are layered onto.
func MakeDefaultConfig() *Config {
	return &Config{
		ListenAddr:      defaults.ListenAddr,
		PoolMaxSize:     defaults.PoolMaxSize,
		PoolWaitTimeout: defaults.PoolWaitTimeout,
		CommandTimeout:  defaults.CommandTimeout,
		LogLevel:        slog.LevelInfo,
		LogFormat:       utils.LogFormatText,
	}
}

// CheckAndSetDefaults validates the resolved configuration.
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return trace.BadParameter("invalid listen address %q: %v", cfg.ListenAddr, err)
	}
	if len(cfg.JWTSecret) == 0 {
		return trace.BadParameter("jwt secret is not set: provide auth.jwt_secret in the config file or the %v environment variable", EnvJWTSecret)
	}
	if cfg.PoolMaxSize < 0 {
		return trace.BadParameter("pool_max_size must be positive, got %v", cfg.PoolMaxSize)
	}
	if cfg.PoolMaxSize == 0 {
		cfg.PoolMaxSize = defaults.PoolMaxSize
	}
	if cfg.PoolWaitTimeout == 0 {
		cfg.PoolWaitTimeout = defaults.PoolWaitTimeout
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = defaults.CommandTimeout
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = utils.LogFormatText
	}
	return nil
}

// Configure merges the config file, environment variables and command line
// flags into cfg, with flags taking the highest precedence, and validates
// the result.
func Configure(clf *CommandLineFlags, cfg *Config) error {
	fileConf, err := ReadConfigFile(clf.ConfigFile)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := ApplyFileConfig(fileConf, cfg); err != nil {
		return trace.Wrap(err)
	}
	if err := applyEnvironment(cfg); err != nil {
		return trace.Wrap(err)
	}

	if clf.ListenAddr != "" {
		cfg.ListenAddr = clf.ListenAddr
	}
	if clf.Debug {
		cfg.Debug = true
		cfg.LogLevel = slog.LevelDebug
	}

	return trace.Wrap(cfg.CheckAndSetDefaults())
}

// ApplyFileConfig applies the YAML file configuration to the runtime config.
// A nil file config is a no-op.
func ApplyFileConfig(fc *FileConfig, cfg *Config) error {
	if fc == nil {
		return nil
	}

	applyString(fc.Server.ListenAddr, &cfg.ListenAddr)
	applyString(fc.Redis.DefaultPassword, &cfg.DefaultPassword)
	applyString(fc.Database.URL, &cfg.DatabaseURL)
	if fc.Auth.JWTSecret != "" {
		cfg.JWTSecret = []byte(fc.Auth.JWTSecret)
	}

	if fc.Redis.PoolMaxSize < 0 {
		return trace.BadParameter("redis.pool_max_size must be positive, got %v", fc.Redis.PoolMaxSize)
	}
	if fc.Redis.PoolMaxSize > 0 {
		cfg.PoolMaxSize = fc.Redis.PoolMaxSize
	}
	if fc.Redis.PoolWaitSeconds < 0 {
		return trace.BadParameter("redis.pool_wait_seconds must be positive, got %v", fc.Redis.PoolWaitSeconds)
	}
	if fc.Redis.PoolWaitSeconds > 0 {
		cfg.PoolWaitTimeout = time.Duration(fc.Redis.PoolWaitSeconds) * time.Second
	}
	if fc.Redis.CommandTimeoutSeconds < 0 {
		return trace.BadParameter("redis.command_timeout_seconds must be positive, got %v", fc.Redis.CommandTimeoutSeconds)
	}
	if fc.Redis.CommandTimeoutSeconds > 0 {
		cfg.CommandTimeout = time.Duration(fc.Redis.CommandTimeoutSeconds) * time.Second
	}

	if fc.Logger.Level != "" {
		level, err := utils.ParseLogLevel(fc.Logger.Level)
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.LogLevel = level
	}
	if fc.Logger.Format != "" {
		format, err := normalizeLogFormat(fc.Logger.Format)
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.LogFormat = format
	}

	for i := range fc.Instances {
		inst, localPort, err := fc.Instances[i].parse()
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.Instances = append(cfg.Instances, *inst)
		if localPort > 0 {
			if cfg.LocalPorts == nil {
				cfg.LocalPorts = make(map[string]int)
			}
			cfg.LocalPorts[inst.Slug] = localPort
		}
	}

	return nil
}

// parse converts a file instance entry into a registry instance. Entries
// without an explicit id get one derived from the tenant and slug, so the
// instance keeps its identity across process restarts.
func (e *InstanceEntry) parse() (*services.Instance, int, error) {
	if e.Slug == "" {
		return nil, 0, trace.BadParameter("instance entry is missing slug")
	}
	if e.OrganizationID == "" {
		return nil, 0, trace.BadParameter("instance %q is missing organization_id", e.Slug)
	}
	if e.LocalPort < 0 || e.LocalPort > 65535 {
		return nil, 0, trace.BadParameter("instance %q has invalid local_port %v", e.Slug, e.LocalPort)
	}
	id := e.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("redisgate://%v/%v", e.OrganizationID, e.Slug))).String()
	}
	name := e.Name
	if name == "" {
		name = e.Slug
	}
	inst := services.Instance{
		ID:             id,
		OrganizationID: e.OrganizationID,
		Name:           name,
		Slug:           e.Slug,
		Namespace:      e.Namespace,
		Addr:           e.Addr,
		Status:         services.InstanceStatusRunning,
	}
	if err := inst.CheckAndSetDefaults(); err != nil {
		return nil, 0, trace.Wrap(err)
	}
	return &inst, e.LocalPort, nil
}

// applyEnvironment overrides cfg from process environment variables.
func applyEnvironment(cfg *Config) error {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.JWTSecret = []byte(v)
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.DefaultPassword = v
	}
	if v := os.Getenv(EnvPoolMaxSize); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return trace.BadParameter("invalid %v value %q", EnvPoolMaxSize, v)
		}
		cfg.PoolMaxSize = size
	}
	if v := os.Getenv(EnvPoolWaitSeconds); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return trace.BadParameter("invalid %v value %q", EnvPoolWaitSeconds, v)
		}
		cfg.PoolWaitTimeout = time.Duration(seconds) * time.Second
	}
	if v := os.Getenv(EnvCommandTimeoutSeconds); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return trace.BadParameter("invalid %v value %q", EnvCommandTimeoutSeconds, v)
		}
		cfg.CommandTimeout = time.Duration(seconds) * time.Second
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return trace.BadParameter("invalid %v value %q", EnvPort, v)
		}
		host, _, err := net.SplitHostPort(cfg.ListenAddr)
		if err != nil {
			host = "0.0.0.0"
		}
		cfg.ListenAddr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		level, err := utils.ParseLogLevel(v)
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		format, err := normalizeLogFormat(v)
		if err != nil {
			return trace.Wrap(err)
		}
		cfg.LogFormat = format
	}
	return nil
}

func normalizeLogFormat(format string) (string, error) {
	switch format {
	case utils.LogFormatText, utils.LogFormatJSON:
		return format, nil
	default:
		return "", trace.BadParameter("unsupported log format %q, expected %q or %q",
			format, utils.LogFormatText, utils.LogFormatJSON)
	}
}

// applyString overwrites target with src unless src is empty. Returns true
// if the value was applied.
func applyString(src string, target *string) bool {
	if src != "" {
		*target = src
		return true
	}
	return false
}
