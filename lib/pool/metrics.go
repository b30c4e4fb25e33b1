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

package pool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/utils"
)

var (
	activePools = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: redisgate.MetricActivePools,
		Help: "Number of live redis connection pools.",
	})
	poolCreates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: redisgate.MetricPoolCreates,
		Help: "Total number of redis connection pools created.",
	})
	poolEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: redisgate.MetricPoolEvictions,
		Help: "Total number of redis connection pools evicted.",
	})
)

func registerMetrics() error {
	return utils.RegisterPrometheusCollectors(activePools, poolCreates, poolEvictions)
}
