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

// Package pool maintains the keyed registry of per-instance Redis connection
// pools.
//
// Pools are created lazily: the first request for an instance resolves its
// endpoint through the locator, dials it, and probes it with a PING before
// the pool is published in the registry. The registry holds at most one pool
// per instance; racing creators are resolved under the exclusive lock, where
// no I/O ever happens. Stale pools are evicted by callers when a command
// fails with a recoverable error, so the next request rebuilds the pool from
// fresh discovery.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/defaults"
	"github.com/redisgate/redisgate/lib/locator"
	"github.com/redisgate/redisgate/lib/services"
)

// refreshParallelism caps concurrent pool warm-ups and health probes so a
// sweep over many instances cannot spike connection load.
const refreshParallelism = 4

// Locator resolves an instance descriptor to a dialable endpoint.
type Locator interface {
	Locate(ctx context.Context, inst *services.Instance) (*locator.Endpoint, error)
}

// Config holds pool manager parameters.
type Config struct {
	// Locator resolves instances to Redis endpoints.
	Locator Locator
	// MaxSize bounds the number of connections per instance pool.
	MaxSize int
	// WaitTimeout bounds the wait for a free connection from a full pool.
	WaitTimeout time.Duration
	// DialTimeout bounds each TCP connect.
	DialTimeout time.Duration
	// HealthProbeTimeout bounds the PING probe on pool creation and in
	// health snapshots.
	HealthProbeTimeout time.Duration
	// Clock is used for pool age accounting.
	Clock clockwork.Clock
	// Log is the logger. Defaults to the process logger.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Locator == nil {
		return trace.BadParameter("missing parameter Locator")
	}
	if c.MaxSize <= 0 {
		c.MaxSize = defaults.PoolMaxSize
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = defaults.PoolWaitTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.HealthProbeTimeout <= 0 {
		c.HealthProbeTimeout = defaults.HealthProbeTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = slog.Default().With(redisgate.ComponentKey, redisgate.ComponentPool)
	}
	return nil
}

type entry struct {
	client    *redis.Client
	addr      string
	createdAt time.Time
}

// Manager is the pool registry. Safe for concurrent use.
type Manager struct {
	cfg Config

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
}

// NewManager returns a pool manager for the given config.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := registerMetrics(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Manager{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}, nil
}

// Client returns the instance's pooled client, constructing the pool on
// first use. Construction resolves the endpoint through the locator, dials
// it, and verifies liveness with a PING; only then is the pool published.
func (m *Manager) Client(ctx context.Context, inst *services.Instance) (*redis.Client, error) {
	if inst == nil {
		return nil, trace.BadParameter("missing instance")
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, trace.ConnectionProblem(nil, "pool manager is closed")
	}
	if ent, ok := m.entries[inst.ID]; ok {
		m.mu.RUnlock()
		return ent.client, nil
	}
	m.mu.RUnlock()

	// Discovery, dial and probe all do I/O, so they happen outside the
	// lock. The double check below resolves concurrent constructions.
	ep, err := m.cfg.Locator.Locate(ctx, inst)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        ep.Addr,
		Password:    ep.Password,
		PoolSize:    m.cfg.MaxSize,
		PoolTimeout: m.cfg.WaitTimeout,
		DialTimeout: m.cfg.DialTimeout,
		// RESP2 keeps generic replies in their stable array forms.
		Protocol: 2,
		// Read and write deadlines come from each command's context;
		// every caller supplies a per-command timeout.
		ReadTimeout:           -1,
		WriteTimeout:          -1,
		ContextTimeoutEnabled: true,
	})
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.HealthProbeTimeout)
	defer cancel()
	if err := client.Ping(probeCtx).Err(); err != nil {
		client.Close()
		return nil, trace.ConnectionProblem(err, "redis instance %q is unreachable at %v", inst.ID, ep.Addr)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		client.Close()
		return nil, trace.ConnectionProblem(nil, "pool manager is closed")
	}
	if existing, ok := m.entries[inst.ID]; ok {
		// Another request finished construction first; keep its pool.
		m.mu.Unlock()
		client.Close()
		return existing.client, nil
	}
	m.entries[inst.ID] = &entry{client: client, addr: ep.Addr, createdAt: m.cfg.Clock.Now()}
	m.mu.Unlock()

	poolCreates.Inc()
	activePools.Inc()
	m.cfg.Log.InfoContext(ctx, "Created redis connection pool.",
		"instance", inst.ID,
		"addr", ep.Addr,
		"max_size", m.cfg.MaxSize,
	)
	return client, nil
}

// Evict removes the instance's pool, but only if it still holds the given
// client. The compare-and-delete keeps a concurrently rebuilt pool alive
// when a slow request reports a failure against the previous generation.
func (m *Manager) Evict(instanceID string, stale *redis.Client) bool {
	m.mu.Lock()
	ent, ok := m.entries[instanceID]
	if !ok || ent.client != stale {
		m.mu.Unlock()
		return false
	}
	delete(m.entries, instanceID)
	m.mu.Unlock()

	ent.client.Close()
	poolEvictions.Inc()
	activePools.Dec()
	m.cfg.Log.Info("Evicted stale redis pool.",
		"instance", instanceID,
		"addr", ent.addr,
		"age", m.cfg.Clock.Since(ent.createdAt),
	)
	return true
}

// Refresh reconciles the registry against the set of live instances: pools
// whose instances disappeared are dropped, and pools for new instances are
// warmed. The sweep is advisory; Client always re-checks, so warm-up
// failures are only logged.
func (m *Manager) Refresh(ctx context.Context, live []services.Instance) {
	liveByID := make(map[string]*services.Instance, len(live))
	for i := range live {
		liveByID[live[i].ID] = &live[i]
	}

	var gone []*entry
	var goneIDs []string
	m.mu.Lock()
	for id, ent := range m.entries {
		if _, ok := liveByID[id]; !ok {
			delete(m.entries, id)
			gone = append(gone, ent)
			goneIDs = append(goneIDs, id)
		}
	}
	m.mu.Unlock()
	for i, ent := range gone {
		ent.client.Close()
		poolEvictions.Inc()
		activePools.Dec()
		m.cfg.Log.InfoContext(ctx, "Dropped pool for removed instance.",
			"instance", goneIDs[i],
			"addr", ent.addr,
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshParallelism)
	for _, inst := range liveByID {
		if m.has(inst.ID) {
			continue
		}
		g.Go(func() error {
			if _, err := m.Client(gctx, inst); err != nil {
				m.cfg.Log.WarnContext(gctx, "Failed to warm redis pool.",
					"instance", inst.ID,
					"error", err,
				)
			}
			return nil
		})
	}
	// Warm-ups never return errors; Wait only joins them.
	_ = g.Wait()
}

// HealthSnapshot probes every registered pool with a PING and reports the
// outcomes. Purely observational: membership is never mutated.
func (m *Manager) HealthSnapshot(ctx context.Context) map[string]bool {
	m.mu.RLock()
	clients := make(map[string]*redis.Client, len(m.entries))
	for id, ent := range m.entries {
		clients[id] = ent.client
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	health := make(map[string]bool, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshParallelism)
	for id, client := range clients {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, m.cfg.HealthProbeTimeout)
			defer cancel()
			err := client.Ping(probeCtx).Err()
			mu.Lock()
			health[id] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return health
}

// Len returns the number of registered pools.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close releases every pool and shuts the manager down.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	var errs []error
	for id, ent := range entries {
		if err := ent.client.Close(); err != nil {
			errs = append(errs, trace.Wrap(err, "closing pool for instance %q", id))
		}
		activePools.Dec()
	}
	return trace.NewAggregate(errs...)
}

func (m *Manager) has(instanceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[instanceID]
	return ok
}
