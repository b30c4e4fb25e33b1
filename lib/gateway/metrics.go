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

package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/utils"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: redisgate.MetricRequests,
		Help: "Total HTTP requests handled by the gateway.",
	}, []string{"method", "code"})
	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    redisgate.MetricRequestLatency,
		Help:    "HTTP request handling latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	redisCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: redisgate.MetricCommands,
		Help: "Total redis commands dispatched.",
	}, []string{"command", "outcome"})
	redisCommandLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    redisgate.MetricCommandLatency,
		Help:    "Redis command latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})
)

func registerMetrics() error {
	return utils.RegisterPrometheusCollectors(
		httpRequests, httpLatency, redisCommands, redisCommandLatency,
	)
}

func (h *Handler) observeCommand(name string, elapsed time.Duration, err error) {
	// A nil reply is a successful miss, not a failure.
	outcome := "success"
	if err != nil && !errors.Is(err, redis.Nil) {
		outcome = "error"
	}
	label := commandLabel(name)
	redisCommands.WithLabelValues(label, outcome).Inc()
	redisCommandLatency.WithLabelValues(label).Observe(elapsed.Seconds())
}
