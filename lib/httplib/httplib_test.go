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

package httplib

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gravitational/trace"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func TestErrorToCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		err  error
		want int
	}{
		{desc: "unauthenticated", err: Unauthenticated("missing bearer token"), want: http.StatusUnauthorized},
		{desc: "access denied", err: trace.AccessDenied("wrong tenant"), want: http.StatusForbidden},
		{desc: "bad parameter", err: trace.BadParameter("GET requires key"), want: http.StatusBadRequest},
		{desc: "not found", err: trace.NotFound("no such instance"), want: http.StatusNotFound},
		{desc: "unavailable", err: Unavailable("no service for instance"), want: http.StatusServiceUnavailable},
		{desc: "limit exceeded", err: trace.LimitExceeded("pool timeout"), want: http.StatusGatewayTimeout},
		{desc: "connection problem", err: trace.ConnectionProblem(nil, "connection refused"), want: http.StatusBadGateway},
		{desc: "deadline exceeded", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{desc: "wrapped deadline", err: trace.Wrap(context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{desc: "plain error", err: trace.Errorf("ERR unknown command"), want: http.StatusInternalServerError},
		{desc: "wrapped not found", err: trace.Wrap(trace.NotFound("gone")), want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			require.Equal(t, tt.want, ErrorToCode(tt.err))
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	t.Parallel()

	require.True(t, IsRecoverable(trace.ConnectionProblem(nil, "reset")))
	require.True(t, IsRecoverable(trace.LimitExceeded("pool timeout")))
	require.True(t, IsRecoverable(Unavailable("discovery failed")))
	require.False(t, IsRecoverable(trace.NotFound("no such instance")))
	require.False(t, IsRecoverable(trace.AccessDenied("wrong tenant")))
}

func TestReplyError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ReplyError(rec, trace.NotFound("instance %q not found", "abc"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusNotFound, body.Status)
	require.Contains(t, body.Error, `instance "abc" not found`)
}

func TestMakeHandler(t *testing.T) {
	t.Parallel()

	router := httprouter.New()
	router.GET("/ok", MakeHandler(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) (interface{}, error) {
		return map[string]string{"result": "PONG"}, nil
	}))
	router.GET("/fail", MakeHandler(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) (interface{}, error) {
		return nil, trace.BadParameter("bad request")
	}))
	router.GET("/raw", MakeHandler(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) (interface{}, error) {
		w.WriteHeader(http.StatusNoContent)
		return nil, nil
	}))

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ok")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/fail")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/raw")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestReadJSON(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`["LPUSH", "list", 1, 2]`))
	var raw []interface{}
	require.NoError(t, ReadJSON(r, &raw))
	require.Len(t, raw, 4)
	require.Equal(t, "LPUSH", raw[0])
	// Numbers must arrive as json.Number, not float64.
	require.Equal(t, json.Number("1"), raw[2])

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	err := ReadJSON(r, &raw)
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}
