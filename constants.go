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
	// ComponentKey is the name of the log attribute carrying the component
	// emitting the entry.
	ComponentKey = "redisgate.component"

	// ComponentGateway is the HTTP command gateway.
	ComponentGateway = "gateway"

	// ComponentPool is the Redis connection pool manager.
	ComponentPool = "pool"

	// ComponentLocator is the kubernetes service locator.
	ComponentLocator = "locator"

	// ComponentRegistry is the instance registry.
	ComponentRegistry = "registry"

	// ComponentTokens is the bearer token service.
	ComponentTokens = "tokens"

	// ComponentProcess is the top-level service supervisor.
	ComponentProcess = "process"
)

const (
	// LabelApp is the label selecting managed Redis services.
	LabelApp = "app"

	// LabelAppValue is the value of LabelApp on managed Redis services.
	LabelAppValue = "redis"

	// LabelInstance is the label carrying the instance slug on managed
	// Redis services.
	LabelInstance = "instance"

	// SecretPasswordKey is the key under which an instance secret stores
	// the Redis password.
	SecretPasswordKey = "redis-password"
)
