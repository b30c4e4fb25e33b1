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

package redisgate

const (
	// MetricRequests counts handled HTTP requests.
	MetricRequests = "redisgate_http_requests_total"

	// MetricRequestLatency measures HTTP request handling latency.
	MetricRequestLatency = "redisgate_http_request_duration_seconds"

	// MetricCommands counts Redis commands executed on behalf of clients.
	MetricCommands = "redisgate_redis_commands_total"

	// MetricCommandLatency measures Redis command round-trip latency.
	MetricCommandLatency = "redisgate_redis_command_duration_seconds"

	// MetricActivePools gauges the number of live per-instance pools.
	MetricActivePools = "redisgate_redis_pools"

	// MetricPoolCreates counts pool constructions.
	MetricPoolCreates = "redisgate_redis_pool_creates_total"

	// MetricPoolEvictions counts pool evictions.
	MetricPoolEvictions = "redisgate_redis_pool_evictions_total"
)
