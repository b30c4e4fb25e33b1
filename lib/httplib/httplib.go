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

// Package httplib implements common utility functions for writing
// the gateway's HTTP handlers.
package httplib

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gravitational/trace"
	"github.com/julienschmidt/httprouter"
)

// MaxRequestSize caps the request bodies the gateway is willing to read.
const MaxRequestSize = 1 << 20 // 1 MiB

// HandlerFunc is an HTTP handler that returns a JSON-marshalable result or
// an error. A nil result with a nil error means the handler wrote the
// response itself.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, p httprouter.Params) (interface{}, error)

// MakeHandler returns a new httprouter.Handle func from a handler func.
func MakeHandler(fn HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		out, err := fn(w, r, p)
		if err != nil {
			ReplyError(w, err)
			return
		}
		if out != nil {
			ReplyJSON(w, http.StatusOK, out)
		}
	}
}

// ReadJSON decodes the request body into val. Numbers decode as
// json.Number so that callers keep the client's exact representation.
func ReadJSON(r *http.Request, val interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxRequestSize))
	dec.UseNumber()
	if err := dec.Decode(val); err != nil {
		return trace.BadParameter("invalid request body: %v", err)
	}
	return nil
}

// ReplyJSON writes obj as the JSON response body with the given status code.
func ReplyJSON(w http.ResponseWriter, code int, obj interface{}) {
	data, err := json.Marshal(obj)
	if err != nil {
		slog.Error("Failed to marshal response.", "error", err)
		http.Error(w, `{"error":"internal server error","status":500}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// ErrorResponse is the uniform error envelope returned to clients.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ReplyError writes the error envelope for err with the status code derived
// by ErrorToCode. The envelope carries the user-facing message only, never
// stack traces.
func ReplyError(w http.ResponseWriter, err error) {
	code := ErrorToCode(err)
	ReplyJSON(w, code, ErrorResponse{
		Error:  trace.UserMessage(err),
		Status: code,
	})
}
