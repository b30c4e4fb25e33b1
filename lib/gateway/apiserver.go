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

// Package gateway implements the HTTP surface of the gate: the authorization
// gate in front of every instance-scoped route, the command dispatcher
// translating requests into Redis commands, and the JSON reply encoding.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/defaults"
	"github.com/redisgate/redisgate/lib/httplib"
	"github.com/redisgate/redisgate/lib/jwt"
	"github.com/redisgate/redisgate/lib/pool"
	"github.com/redisgate/redisgate/lib/services"
)

// Config holds gateway handler parameters.
type Config struct {
	// Tokens verifies bearer credentials.
	Tokens *jwt.Service
	// Registry resolves instance descriptors.
	Registry services.InstanceRegistry
	// Pool supplies per-instance Redis clients.
	Pool *pool.Manager
	// CommandTimeout bounds each dispatched Redis command.
	CommandTimeout time.Duration
	// Clock is used for request and command latency accounting.
	Clock clockwork.Clock
	// Log is the logger. Defaults to the process logger.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Tokens == nil {
		return trace.BadParameter("missing parameter Tokens")
	}
	if c.Registry == nil {
		return trace.BadParameter("missing parameter Registry")
	}
	if c.Pool == nil {
		return trace.BadParameter("missing parameter Pool")
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaults.CommandTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = slog.Default().With(redisgate.ComponentKey, redisgate.ComponentGateway)
	}
	return nil
}

// Handler is the gateway's HTTP handler.
type Handler struct {
	httprouter.Router
	cfg Config
	log *slog.Logger
}

// NewHandler returns an HTTP handler serving the gateway API:
//
//	GET|POST|PUT  /redis/:instance/*command   path-encoded command
//	DELETE        /redis/:instance/*command   DEL shorthand on a key path
//	POST          /redis/:instance            body-encoded command [cmd, arg, ...]
//	GET           /healthz                    pool health snapshot
//	GET           /version                    gateway version
//	GET           /metrics                    prometheus exposition
func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := registerMetrics(); err != nil {
		return nil, trace.Wrap(err)
	}
	h := &Handler{cfg: cfg, log: cfg.Log}

	h.GET("/redis/:instance/*command", h.withInstanceAuth(h.handlePathCommand))
	h.POST("/redis/:instance/*command", h.withInstanceAuth(h.handlePathCommand))
	h.PUT("/redis/:instance/*command", h.withInstanceAuth(h.handlePathCommand))
	h.DELETE("/redis/:instance/*command", h.withInstanceAuth(h.handlePathCommand))
	h.POST("/redis/:instance", h.withInstanceAuth(h.handleBodyCommand))

	h.GET("/healthz", httplib.MakeHandler(h.handleHealth))
	h.GET("/version", httplib.MakeHandler(h.handleVersion))
	h.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return h, nil
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestID returns the id tagged onto the request by ServeHTTP.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusWriter captures the response code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// ServeHTTP tags the request with an id, dispatches it through the router,
// and emits one log line and the request metrics. The query string never
// reaches the log: it may carry credentials.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	r = r.WithContext(withRequestID(r.Context(), id))
	recorder := &statusWriter{ResponseWriter: w}
	start := h.cfg.Clock.Now()

	h.Router.ServeHTTP(recorder, r)

	status := recorder.status
	if status == 0 {
		status = http.StatusOK
	}
	duration := h.cfg.Clock.Since(start)
	httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(r.Method).Observe(duration.Seconds())
	h.log.InfoContext(r.Context(), "Handled request.",
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", duration,
		"remote_addr", r.RemoteAddr,
	)
}

func (h *Handler) handlePathCommand(w http.ResponseWriter, r *http.Request, p httprouter.Params, authCtx *authContext) (interface{}, error) {
	cmd, err := parsePathCommand(r.Method, p.ByName("command"), r.URL.Query())
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := h.authorizeScope(authCtx, cmd.name); err != nil {
		return nil, trace.Wrap(err)
	}
	return h.execute(r.Context(), authCtx, cmd)
}

func (h *Handler) handleBodyCommand(w http.ResponseWriter, r *http.Request, p httprouter.Params, authCtx *authContext) (interface{}, error) {
	cmd, err := parseBodyCommand(r)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := h.authorizeScope(authCtx, cmd.name); err != nil {
		return nil, trace.Wrap(err)
	}
	return h.execute(r.Context(), authCtx, cmd)
}

// execute runs one command on the instance's pooled client under the command
// timeout. Recoverable failures evict the pool so the next request rebuilds
// it from fresh discovery.
func (h *Handler) execute(ctx context.Context, authCtx *authContext, cmd *command) (interface{}, error) {
	client, err := h.cfg.Pool.Client(ctx, authCtx.instance)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	args := make([]interface{}, 0, len(cmd.args)+1)
	args = append(args, cmd.name)
	for _, a := range cmd.args {
		args = append(args, a)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.CommandTimeout)
	defer cancel()

	start := h.cfg.Clock.Now()
	rcmd := redis.NewCmd(ctx, args...)
	err = client.Process(ctx, rcmd)
	h.observeCommand(cmd.name, h.cfg.Clock.Since(start), err)

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return commandResult{Result: nil}, nil
		}
		converted := pool.ConvertError(err)
		if httplib.IsRecoverable(converted) && h.cfg.Pool.Evict(authCtx.instance.ID, client) {
			h.log.InfoContext(ctx, "Evicted redis pool after recoverable failure.",
				"request_id", requestID(ctx),
				"instance", authCtx.instance.ID,
			)
		}
		h.log.WarnContext(ctx, "Redis command failed.",
			"request_id", requestID(ctx),
			"organization", authCtx.claims.OrganizationID,
			"instance", authCtx.instance.ID,
			"command", cmd.name,
			"error", converted,
		)
		return nil, trace.Wrap(converted)
	}

	val, err := rcmd.Result()
	if err != nil {
		return nil, trace.Wrap(pool.ConvertError(err))
	}
	return commandResult{Result: encodeReply(val)}, nil
}

type healthStatus struct {
	Status string          `json:"status"`
	Pools  map[string]bool `json:"pools"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (interface{}, error) {
	return healthStatus{Status: "ok", Pools: h.cfg.Pool.HealthSnapshot(r.Context())}, nil
}

type versionInfo struct {
	Version string `json:"version"`
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) (interface{}, error) {
	return versionInfo{Version: redisgate.Version}, nil
}
