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

// Package service assembles the gateway process: it turns a resolved
// configuration into a running HTTP server with its registry, locator,
// pool manager and token service wired together.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gravitational/trace"
	"k8s.io/client-go/kubernetes"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/config"
	"github.com/redisgate/redisgate/lib/defaults"
	"github.com/redisgate/redisgate/lib/gateway"
	"github.com/redisgate/redisgate/lib/jwt"
	"github.com/redisgate/redisgate/lib/locator"
	"github.com/redisgate/redisgate/lib/pool"
	"github.com/redisgate/redisgate/lib/registry"
	"github.com/redisgate/redisgate/lib/services"
	"github.com/redisgate/redisgate/lib/utils"
)

// Service is the assembled gateway process.
type Service struct {
	cfg       *config.Config
	log       *slog.Logger
	registry  services.InstanceRegistry
	pool      *pool.Manager
	server    *http.Server
	inCluster bool
}

// New builds the gateway from the resolved configuration. The registry is
// backed by postgres when a database URL is configured and by the statically
// declared instances otherwise; at least one of the two must be present.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	log := utils.InitLogger(cfg.LogLevel, cfg.LogFormat)

	reg, err := newRegistry(ctx, cfg, log)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	inCluster := locator.InKubeCluster()
	var kubeClient kubernetes.Interface
	if inCluster {
		kubeClient, err = locator.NewInClusterClient()
		if err != nil {
			reg.Close()
			return nil, trace.Wrap(err, "building in-cluster kubernetes client")
		}
	}
	loc, err := locator.New(locator.Config{
		Client:          kubeClient,
		InCluster:       inCluster,
		DefaultPassword: cfg.DefaultPassword,
		LocalPorts:      cfg.LocalPorts,
		Log:             log.With(redisgate.ComponentKey, redisgate.ComponentLocator),
	})
	if err != nil {
		reg.Close()
		return nil, trace.Wrap(err)
	}

	pm, err := pool.NewManager(pool.Config{
		Locator:     loc,
		MaxSize:     cfg.PoolMaxSize,
		WaitTimeout: cfg.PoolWaitTimeout,
		Log:         log.With(redisgate.ComponentKey, redisgate.ComponentPool),
	})
	if err != nil {
		reg.Close()
		return nil, trace.Wrap(err)
	}

	tokens, err := jwt.New(jwt.Config{Secret: cfg.JWTSecret})
	if err != nil {
		pm.Close()
		reg.Close()
		return nil, trace.Wrap(err)
	}

	handler, err := gateway.NewHandler(gateway.Config{
		Tokens:         tokens,
		Registry:       reg,
		Pool:           pm,
		CommandTimeout: cfg.CommandTimeout,
		Log:            log.With(redisgate.ComponentKey, redisgate.ComponentGateway),
	})
	if err != nil {
		pm.Close()
		reg.Close()
		return nil, trace.Wrap(err)
	}

	return &Service{
		cfg:      cfg,
		log:      log.With(redisgate.ComponentKey, redisgate.ComponentProcess),
		registry: reg,
		pool:     pm,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: defaults.ReadHeadersTimeout,
		},
		inCluster: inCluster,
	}, nil
}

func newRegistry(ctx context.Context, cfg *config.Config, log *slog.Logger) (services.InstanceRegistry, error) {
	regLog := log.With(redisgate.ComponentKey, redisgate.ComponentRegistry)
	if cfg.DatabaseURL != "" {
		reg, err := registry.NewPostgres(ctx, registry.PostgresConfig{
			ConnString: cfg.DatabaseURL,
			Log:        regLog,
		})
		return reg, trace.Wrap(err)
	}
	if len(cfg.Instances) > 0 {
		reg, err := registry.NewMemory(cfg.Instances...)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		regLog.InfoContext(ctx, "Serving statically configured instances.", "count", len(cfg.Instances))
		return reg, nil
	}
	return nil, trace.BadParameter("no instance registry configured: set database.url or declare static instances")
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return trace.Wrap(err, "listening on %v", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on the listener until ctx is canceled, then
// drains in-flight requests for up to the shutdown timeout and releases the
// pool manager and the registry. The listener is always closed on return.
func (s *Service) Serve(ctx context.Context, listener net.Listener) error {
	s.log.InfoContext(ctx, "Gateway is listening.",
		"addr", listener.Addr().String(),
		"version", redisgate.Version,
		"in_cluster", s.inCluster,
	)
	if s.inCluster {
		go s.refreshLoop(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		err := s.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	var err error
	select {
	case err = <-serveErr:
		// The listener failed underneath us; there is nothing left to
		// drain, only resources to release.
		err = trace.Wrap(err)
	case <-ctx.Done():
		s.log.Info("Shutting down gateway.", "timeout", defaults.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.ShutdownTimeout)
		defer cancel()
		if serr := s.server.Shutdown(shutdownCtx); serr != nil {
			s.server.Close()
			err = trace.Wrap(serr, "shutting down HTTP server")
		}
		<-serveErr
	}

	return trace.NewAggregate(err, s.Close())
}

// Close releases the pool manager and the registry without waiting for
// in-flight requests. Safe to call more than once.
func (s *Service) Close() error {
	return trace.NewAggregate(
		s.pool.Close(),
		s.registry.Close(),
	)
}

// refreshLoop periodically reconciles connection pools against the live
// instance set. Only useful in-cluster, where instances come and go behind
// the registry.
func (s *Service) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(defaults.PoolRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		live, err := s.registry.ListLiveInstances(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "Skipping pool refresh, listing live instances failed.", "error", err)
			continue
		}
		s.pool.Refresh(ctx, live)
	}
}
