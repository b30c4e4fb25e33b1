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

package services

import "strings"

// Capability scopes carried by api-key tokens. The classes form a lattice:
// admin grants write, write grants read.
const (
	// ScopeRead permits non-mutating commands.
	ScopeRead = "read"
	// ScopeWrite permits mutating commands on the instance's data.
	ScopeWrite = "write"
	// ScopeAdmin permits every command, including destructive and
	// non-allow-listed ones.
	ScopeAdmin = "admin"
	// ScopeWildcard is the legacy grant-everything scope still present
	// on older api keys. Equivalent to ScopeAdmin.
	ScopeWildcard = "redis:*"
)

// commandScopes classifies the allow-listed commands. Anything absent,
// including every verbatim-forwarded command, classes as admin.
var commandScopes = map[string]string{
	"PING":      ScopeRead,
	"GET":       ScopeRead,
	"EXISTS":    ScopeRead,
	"TTL":       ScopeRead,
	"STRLEN":    ScopeRead,
	"LLEN":      ScopeRead,
	"LRANGE":    ScopeRead,
	"HGET":      ScopeRead,
	"HEXISTS":   ScopeRead,
	"HGETALL":   ScopeRead,
	"HKEYS":     ScopeRead,
	"HVALS":     ScopeRead,
	"SISMEMBER": ScopeRead,
	"SMEMBERS":  ScopeRead,
	"SCARD":     ScopeRead,

	"SET":    ScopeWrite,
	"SETEX":  ScopeWrite,
	"DEL":    ScopeWrite,
	"INCR":   ScopeWrite,
	"DECR":   ScopeWrite,
	"EXPIRE": ScopeWrite,
	"APPEND": ScopeWrite,
	"LPUSH":  ScopeWrite,
	"RPUSH":  ScopeWrite,
	"LPOP":   ScopeWrite,
	"RPOP":   ScopeWrite,
	"HSET":   ScopeWrite,
	"HDEL":   ScopeWrite,
	"SADD":   ScopeWrite,
	"SREM":   ScopeWrite,
}

// CommandScope returns the scope class required to run the command.
func CommandScope(command string) string {
	if scope, ok := commandScopes[strings.ToUpper(command)]; ok {
		return scope
	}
	return ScopeAdmin
}

// ScopesAllow reports whether any of the granted scopes covers the required
// class.
func ScopesAllow(scopes []string, class string) bool {
	for _, scope := range scopes {
		switch scope {
		case ScopeAdmin, ScopeWildcard:
			return true
		case ScopeWrite:
			if class == ScopeRead || class == ScopeWrite {
				return true
			}
		case ScopeRead:
			if class == ScopeRead {
				return true
			}
		}
	}
	return false
}
