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
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestParsePathCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		method  string
		path    string
		query   url.Values
		want    *command
		wantErr string
	}{
		{
			desc:   "ping takes no arguments",
			method: http.MethodGet,
			path:   "/ping",
			want:   &command{name: "PING", args: []string{}},
		},
		{
			desc:   "command name is case insensitive",
			method: http.MethodGet,
			path:   "/GeT/user:1",
			want:   &command{name: "GET", args: []string{"user:1"}},
		},
		{
			desc:   "trailing slash is tolerated",
			method: http.MethodGet,
			path:   "/ping/",
			want:   &command{name: "PING", args: []string{}},
		},
		{
			desc:   "set with key and value",
			method: http.MethodGet,
			path:   "/set/greeting/hello",
			want:   &command{name: "SET", args: []string{"greeting", "hello"}},
		},
		{
			desc:   "set with expiry rewrites to setex",
			method: http.MethodGet,
			path:   "/set/session/abc123",
			query:  url.Values{"EX": []string{"60"}},
			want:   &command{name: "SETEX", args: []string{"session", "60", "abc123"}},
		},
		{
			desc:    "set with zero expiry is rejected",
			method:  http.MethodGet,
			path:    "/set/session/abc123",
			query:   url.Values{"EX": []string{"0"}},
			wantErr: "EX must be a positive integer of seconds",
		},
		{
			desc:    "set with malformed expiry is rejected",
			method:  http.MethodGet,
			path:    "/set/session/abc123",
			query:   url.Values{"EX": []string{"soon"}},
			wantErr: "EX must be a positive integer of seconds",
		},
		{
			desc:    "set without value is rejected",
			method:  http.MethodGet,
			path:    "/set/greeting",
			wantErr: "SET requires key and value",
		},
		{
			desc:   "del accepts multiple keys",
			method: http.MethodGet,
			path:   "/del/a/b/c",
			want:   &command{name: "DEL", args: []string{"a", "b", "c"}},
		},
		{
			desc:    "lrange arity is enforced",
			method:  http.MethodGet,
			path:    "/lrange/mylist/0",
			wantErr: "LRANGE requires key, start and stop",
		},
		{
			desc:    "empty path is rejected",
			method:  http.MethodGet,
			path:    "/",
			wantErr: "missing command",
		},
		{
			desc:   "bare key defaults to read",
			method: http.MethodGet,
			path:   "/user:1",
			want:   &command{name: "GET", args: []string{"user:1"}},
		},
		{
			desc:   "bare key post sets from value parameter",
			method: http.MethodPost,
			path:   "/user:1",
			query:  url.Values{"value": []string{"hello"}},
			want:   &command{name: "SET", args: []string{"user:1", "hello"}},
		},
		{
			desc:   "bare key put sets from value parameter",
			method: http.MethodPut,
			path:   "/user:1",
			query:  url.Values{"value": []string{""}},
			want:   &command{name: "SET", args: []string{"user:1", ""}},
		},
		{
			desc:   "bare key write honors expiry",
			method: http.MethodPost,
			path:   "/session:9",
			query:  url.Values{"value": []string{"v"}, "EX": []string{"30"}},
			want:   &command{name: "SETEX", args: []string{"session:9", "30", "v"}},
		},
		{
			desc:    "bare key write without value is rejected",
			method:  http.MethodPost,
			path:    "/user:1",
			wantErr: "SET requires a value parameter",
		},
		{
			desc:   "bare key delete",
			method: http.MethodDelete,
			path:   "/user:1",
			want:   &command{name: "DEL", args: []string{"user:1"}},
		},
		{
			desc:   "method override rewrites the verb",
			method: http.MethodGet,
			path:   "/user:1",
			query:  url.Values{"method": []string{"delete"}},
			want:   &command{name: "DEL", args: []string{"user:1"}},
		},
		{
			desc:   "method override post",
			method: http.MethodGet,
			path:   "/user:1",
			query:  url.Values{"method": []string{"POST"}, "value": []string{"v"}},
			want:   &command{name: "SET", args: []string{"user:1", "v"}},
		},
		{
			desc:    "unsupported method override is rejected",
			method:  http.MethodGet,
			path:    "/user:1",
			query:   url.Values{"method": []string{"PATCH"}},
			wantErr: `unsupported method override "PATCH"`,
		},
		{
			desc:   "method override is ignored on command paths",
			method: http.MethodGet,
			path:   "/get/user:1",
			query:  url.Values{"method": []string{"DELETE"}},
			want:   &command{name: "GET", args: []string{"user:1"}},
		},
		{
			desc:    "unknown multi-segment command is rejected",
			method:  http.MethodGet,
			path:    "/frobnicate/a/b",
			wantErr: `unknown command "frobnicate"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()
			query := tt.query
			if query == nil {
				query = url.Values{}
			}
			cmd, err := parsePathCommand(tt.method, tt.path, query)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseBodyCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		body    string
		want    *command
		wantErr string
	}{
		{
			desc: "allow-listed command is normalized",
			body: `["hset", "user:1", "name", "alice"]`,
			want: &command{name: "HSET", args: []string{"user:1", "name", "alice"}},
		},
		{
			desc: "numeric arguments are stringified",
			body: `["SET", "counter", 5]`,
			want: &command{name: "SET", args: []string{"counter", "5"}},
		},
		{
			desc: "float arguments keep their textual form",
			body: `["INCRBYFLOAT", "price", 1.5]`,
			want: &command{name: "INCRBYFLOAT", args: []string{"price", "1.5"}},
		},
		{
			desc: "unknown command passes through verbatim",
			body: `["object", "encoding", "user:1"]`,
			want: &command{name: "object", args: []string{"encoding", "user:1"}},
		},
		{
			desc:    "allow-listed arity is enforced",
			body:    `["GET"]`,
			wantErr: "GET requires key",
		},
		{
			desc:    "empty array is rejected",
			body:    `[]`,
			wantErr: "command array must not be empty",
		},
		{
			desc:    "numeric command name is rejected",
			body:    `[1, "key"]`,
			wantErr: "command name must be a non-empty string",
		},
		{
			desc:    "empty command name is rejected",
			body:    `[""]`,
			wantErr: "command name must be a non-empty string",
		},
		{
			desc:    "boolean argument is rejected",
			body:    `["SET", "flag", true]`,
			wantErr: "command arguments must be strings or numbers",
		},
		{
			desc:    "non-array body is rejected",
			body:    `{"command": "PING"}`,
			wantErr: "",
		},
		{
			desc:    "malformed body is rejected",
			body:    `["PING"`,
			wantErr: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/redis/cache", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			cmd, err := parseBodyCommand(r)
			if tt.want == nil {
				require.Error(t, err)
				require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)
				if tt.wantErr != "" {
					require.ErrorContains(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, cmd)
		})
	}
}

func TestCommandLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "GET", commandLabel("get"))
	require.Equal(t, "HGETALL", commandLabel("HGETALL"))
	require.Equal(t, "OTHER", commandLabel("object"))
	require.Equal(t, "OTHER", commandLabel("FLUSHALL"))
}
