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
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gravitational/trace"

	"github.com/redisgate/redisgate/lib/httplib"
)

// command is a parsed Redis command ready for dispatch. Arguments stay
// opaque strings end to end; numeric interpretation happens only inside
// Redis and at the JSON reply boundary.
type command struct {
	name string
	args []string
}

// commandSpec bounds the arity of an allow-listed command. maxArgs of -1
// means unbounded (variadic commands).
type commandSpec struct {
	minArgs int
	maxArgs int
	usage   string
}

func (s commandSpec) checkArity(args []string) error {
	if len(args) < s.minArgs || (s.maxArgs >= 0 && len(args) > s.maxArgs) {
		return trace.BadParameter("%s", s.usage)
	}
	return nil
}

// commands is the fixed allow-list reachable through path-encoded requests.
// Anything outside it must come through the body-encoded surface, which
// forwards verbatim under the admin scope.
var commands = map[string]commandSpec{
	"PING":      {0, 0, "PING takes no arguments"},
	"GET":       {1, 1, "GET requires key"},
	"SET":       {2, 2, "SET requires key and value"},
	"SETEX":     {3, 3, "SETEX requires key, seconds and value"},
	"DEL":       {1, -1, "DEL requires at least one key"},
	"INCR":      {1, 1, "INCR requires key"},
	"DECR":      {1, 1, "DECR requires key"},
	"EXISTS":    {1, -1, "EXISTS requires at least one key"},
	"EXPIRE":    {2, 2, "EXPIRE requires key and seconds"},
	"TTL":       {1, 1, "TTL requires key"},
	"APPEND":    {2, 2, "APPEND requires key and value"},
	"STRLEN":    {1, 1, "STRLEN requires key"},
	"LPUSH":     {2, -1, "LPUSH requires key and at least one value"},
	"RPUSH":     {2, -1, "RPUSH requires key and at least one value"},
	"LPOP":      {1, 2, "LPOP requires key"},
	"RPOP":      {1, 2, "RPOP requires key"},
	"LLEN":      {1, 1, "LLEN requires key"},
	"LRANGE":    {3, 3, "LRANGE requires key, start and stop"},
	"HSET":      {3, -1, "HSET requires key, field and value"},
	"HGET":      {2, 2, "HGET requires key and field"},
	"HDEL":      {2, -1, "HDEL requires key and at least one field"},
	"HEXISTS":   {2, 2, "HEXISTS requires key and field"},
	"HGETALL":   {1, 1, "HGETALL requires key"},
	"HKEYS":     {1, 1, "HKEYS requires key"},
	"HVALS":     {1, 1, "HVALS requires key"},
	"SADD":      {2, -1, "SADD requires key and at least one member"},
	"SREM":      {2, -1, "SREM requires key and at least one member"},
	"SISMEMBER": {2, 2, "SISMEMBER requires key and member"},
	"SMEMBERS":  {1, 1, "SMEMBERS requires key"},
	"SCARD":     {1, 1, "SCARD requires key"},
}

// splitCommandPath splits the catch-all path remainder into segments.
// net/http has already percent-decoded the path; empty segments from doubled
// or trailing slashes are dropped.
func splitCommandPath(rawPath string) []string {
	parts := strings.Split(rawPath, "/")
	segments := parts[:0]
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// parsePathCommand translates a path-encoded request into a command.
//
// The first segment is matched against the allow-list. A single unknown
// segment is treated as a bare key, with the effective verb taken from the
// method override query parameter when present, else the HTTP method:
// GET reads the key, POST and PUT set it from the value parameter, DELETE
// deletes it.
func parsePathCommand(method, rawPath string, query url.Values) (*command, error) {
	segments := splitCommandPath(rawPath)
	if len(segments) == 0 {
		return nil, trace.BadParameter("missing command")
	}
	name := strings.ToUpper(segments[0])
	spec, ok := commands[name]
	if !ok {
		return parseKeyShorthand(method, segments, query)
	}
	args := segments[1:]
	if err := spec.checkArity(args); err != nil {
		return nil, trace.Wrap(err)
	}
	if name == "SET" {
		if query.Has("EX") {
			return setWithExpiry(args[0], args[1], query)
		}
	}
	return &command{name: name, args: args}, nil
}

// setWithExpiry rewrites SET plus an EX parameter to SETEX.
func setWithExpiry(key, value string, query url.Values) (*command, error) {
	ex := query.Get("EX")
	seconds, err := strconv.Atoi(ex)
	if err != nil || seconds <= 0 {
		return nil, trace.BadParameter("EX must be a positive integer of seconds, got %q", ex)
	}
	return &command{name: "SETEX", args: []string{key, strconv.Itoa(seconds), value}}, nil
}

func parseKeyShorthand(method string, segments []string, query url.Values) (*command, error) {
	if len(segments) != 1 {
		return nil, trace.BadParameter("unknown command %q", segments[0])
	}
	key := segments[0]

	effective := method
	if override := query.Get("method"); override != "" {
		switch strings.ToUpper(override) {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
			effective = strings.ToUpper(override)
		default:
			return nil, trace.BadParameter("unsupported method override %q", override)
		}
	}

	switch effective {
	case http.MethodGet:
		return &command{name: "GET", args: []string{key}}, nil
	case http.MethodPost, http.MethodPut:
		if !query.Has("value") {
			return nil, trace.BadParameter("SET requires a value parameter")
		}
		value := query.Get("value")
		if query.Has("EX") {
			return setWithExpiry(key, value, query)
		}
		return &command{name: "SET", args: []string{key, value}}, nil
	case http.MethodDelete:
		return &command{name: "DEL", args: []string{key}}, nil
	default:
		return nil, trace.BadParameter("unsupported method %q", effective)
	}
}

// parseBodyCommand translates a body-encoded request into a command. The
// body is a JSON array whose first element names the command; remaining
// elements are string or number arguments, numbers stringified. Commands
// outside the allow-list are forwarded verbatim and classified as admin by
// the scope check.
func parseBodyCommand(r *http.Request) (*command, error) {
	var raw []interface{}
	if err := httplib.ReadJSON(r, &raw); err != nil {
		return nil, trace.Wrap(err)
	}
	if len(raw) == 0 {
		return nil, trace.BadParameter("command array must not be empty")
	}
	name, ok := raw[0].(string)
	if !ok || name == "" {
		return nil, trace.BadParameter("command name must be a non-empty string")
	}
	args := make([]string, 0, len(raw)-1)
	for _, v := range raw[1:] {
		switch v := v.(type) {
		case string:
			args = append(args, v)
		case json.Number:
			args = append(args, v.String())
		default:
			return nil, trace.BadParameter("command arguments must be strings or numbers")
		}
	}
	upper := strings.ToUpper(name)
	if spec, ok := commands[upper]; ok {
		if err := spec.checkArity(args); err != nil {
			return nil, trace.Wrap(err)
		}
		return &command{name: upper, args: args}, nil
	}
	return &command{name: name, args: args}, nil
}

// commandLabel caps metric label cardinality: allow-listed commands report
// under their own name, verbatim forwards are folded together.
func commandLabel(name string) string {
	upper := strings.ToUpper(name)
	if _, ok := commands[upper]; ok {
		return upper
	}
	return "OTHER"
}
