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

// Package defaults contains default constants set in various parts of
// the redisgate codebase.
package defaults

import "time"

const (
	// HTTPListenPort is the port the gateway listens on when no address
	// is configured.
	HTTPListenPort = 8080

	// RedisPort is the port assumed for a managed Redis service that
	// declares no ports of its own.
	RedisPort = 6379

	// Namespace is the kubernetes namespace searched when an instance
	// descriptor does not name one.
	Namespace = "default"
)

// ListenAddr is the default gateway listen address.
const ListenAddr = "0.0.0.0:8080"

// ConfigFilePath is the default location of the gateway config file.
const ConfigFilePath = "/etc/redisgate.yaml"

const (
	// PoolMaxSize bounds the number of connections a per-instance pool
	// may hold.
	PoolMaxSize = 10

	// PoolWaitTimeout is how long a request waits to check a connection
	// out of a saturated pool before failing.
	PoolWaitTimeout = 5 * time.Second

	// DialTimeout bounds the TCP connect to a Redis instance.
	DialTimeout = 5 * time.Second

	// DiscoveryTimeout bounds a kubernetes service discovery round.
	DiscoveryTimeout = 10 * time.Second

	// CommandTimeout bounds a single Redis command round-trip.
	CommandTimeout = 5 * time.Second

	// HealthProbeTimeout bounds the PING probe issued against new and
	// registered pools.
	HealthProbeTimeout = 2 * time.Second

	// PoolRefreshInterval is how often the background sweep reconciles
	// the pool registry against the live instance set.
	PoolRefreshInterval = 30 * time.Second

	// ShutdownTimeout is how long the process waits for in-flight
	// requests to drain on shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeadersTimeout bounds reading a request's headers.
	ReadHeadersTimeout = 10 * time.Second
)

const (
	// APIKeyTTL is the lifetime of an api-key token issued without an
	// explicit expiry.
	APIKeyTTL = 365 * 24 * time.Hour

	// SessionTTL is the lifetime of a user session token.
	SessionTTL = 24 * time.Hour

	// KeyPrefixLength is the number of leading api-key id characters
	// used as the key's display handle.
	KeyPrefixLength = 8
)
