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
	"context"
	"errors"
	"io"
	"net"

	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"
)

// ConvertError translates go-redis failures into the gateway's error
// taxonomy. Error replies from the Redis server itself pass through
// unmodified, as do nil replies: both are command outcomes, not transport
// failures.
func ConvertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return err
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return err
	}
	switch {
	case errors.Is(err, redis.ErrPoolTimeout):
		return trace.LimitExceeded("timed out waiting for a redis connection: %v", err)
	case errors.Is(err, redis.ErrClosed):
		return trace.ConnectionProblem(err, "redis connection pool is closed")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return trace.ConnectionProblem(err, "redis connection dropped")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return trace.LimitExceeded("redis command timed out: %v", err)
		}
		return trace.ConnectionProblem(err, "redis connection failed")
	}
	return err
}
