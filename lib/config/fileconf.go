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

package config

import (
	"io"
	"os"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v2"

	"github.com/redisgate/redisgate/lib/defaults"
)

// FileConfig is the gateway configuration as stored in a YAML config file,
// usually /etc/redisgate.yaml. Every field is optional; unset values fall
// back to built-in defaults or environment variables.
type FileConfig struct {
	Server    Server          `yaml:"server,omitempty"`
	Redis     Redis           `yaml:"redis,omitempty"`
	Auth      Auth            `yaml:"auth,omitempty"`
	Database  Database        `yaml:"database,omitempty"`
	Logger    Log             `yaml:"log,omitempty"`
	Instances []InstanceEntry `yaml:"instances,omitempty"`
}

// Server configures the HTTP listener.
type Server struct {
	// ListenAddr is the host:port the gateway serves on.
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// Redis configures outbound Redis connections and pooling.
type Redis struct {
	// DefaultPassword authenticates connections to instances that do not
	// carry their own credential secret.
	DefaultPassword string `yaml:"default_password,omitempty"`
	// PoolMaxSize bounds every per-instance connection pool.
	PoolMaxSize int `yaml:"pool_max_size,omitempty"`
	// PoolWaitSeconds is how long a request waits for a free connection.
	PoolWaitSeconds int `yaml:"pool_wait_seconds,omitempty"`
	// CommandTimeoutSeconds bounds a single command round-trip.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds,omitempty"`
}

// Auth configures token verification.
type Auth struct {
	// JWTSecret is the HS256 signing secret shared with the control plane.
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

// Database configures the instance registry backend.
type Database struct {
	// URL is the postgres connection string. When empty the gateway serves
	// the statically declared instances instead.
	URL string `yaml:"url,omitempty"`
}

// Log configures process logging.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level,omitempty"`
	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// InstanceEntry declares a Redis instance in the config file. Static entries
// back the registry in local development where no control-plane database
// exists.
type InstanceEntry struct {
	// ID is the instance uuid. Derived from the slug when omitted so the
	// entry keeps a stable identity across restarts.
	ID string `yaml:"id,omitempty"`
	// OrganizationID is the owning tenant.
	OrganizationID string `yaml:"organization_id"`
	// Name is the display name, defaults to the slug.
	Name string `yaml:"name,omitempty"`
	// Slug is the tenant-unique handle used in request paths.
	Slug string `yaml:"slug"`
	// Namespace is the kubernetes namespace the instance runs in.
	Namespace string `yaml:"namespace,omitempty"`
	// Addr pins the instance to an explicit host:port, bypassing service
	// discovery.
	Addr string `yaml:"addr,omitempty"`
	// LocalPort maps the instance to 127.0.0.1:port when the gateway runs
	// outside a cluster, typically a kubectl port-forward.
	LocalPort int `yaml:"local_port,omitempty"`
}

// ReadFromFile reads the gateway configuration from a file.
func ReadFromFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()
	fc, err := ReadConfig(f)
	if err != nil {
		return nil, trace.Wrap(err, "failed to parse config file %v", path)
	}
	return fc, nil
}

// ReadConfig parses the YAML configuration from the reader. Unknown keys are
// rejected to catch typos early.
func ReadConfig(reader io.Reader) (*FileConfig, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, trace.Wrap(err, "failed reading gateway configuration")
	}
	var fc FileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return nil, trace.BadParameter("failed to parse gateway configuration: %v", err)
	}
	return &fc, nil
}

// ReadConfigFile loads the config file from the given path, or from the
// default location when the path is empty. A missing default config is not
// an error; a missing explicit path is.
func ReadConfigFile(path string) (*FileConfig, error) {
	if path != "" {
		fc, err := ReadFromFile(path)
		return fc, trace.Wrap(err)
	}
	fc, err := ReadFromFile(defaults.ConfigFilePath)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, nil
		}
		return nil, trace.Wrap(err)
	}
	return fc, nil
}
