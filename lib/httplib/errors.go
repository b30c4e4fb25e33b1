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
	"errors"
	"fmt"
	"net/http"

	"github.com/gravitational/trace"
)

// UnauthenticatedError indicates a missing or unverifiable credential.
// Distinct from trace.AccessDeniedError, which maps to 403: a client seeing
// 401 must obtain a new credential, not a new permission.
type UnauthenticatedError struct {
	Message string `json:"message"`
}

// Error returns the error message.
func (e *UnauthenticatedError) Error() string { return e.Message }

// Unauthenticated returns a new 401 error.
func Unauthenticated(format string, args ...interface{}) error {
	return &UnauthenticatedError{Message: fmt.Sprintf(format, args...)}
}

// IsUnauthenticated reports whether err is an UnauthenticatedError.
func IsUnauthenticated(err error) bool {
	var e *UnauthenticatedError
	return errors.As(err, &e)
}

// UnavailableError indicates the upstream an instance depends on could not
// be resolved, typically a failed kubernetes service discovery round.
type UnavailableError struct {
	Message string `json:"message"`
}

// Error returns the error message.
func (e *UnavailableError) Error() string { return e.Message }

// Unavailable returns a new 503 error.
func Unavailable(format string, args ...interface{}) error {
	return &UnavailableError{Message: fmt.Sprintf(format, args...)}
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var e *UnavailableError
	return errors.As(err, &e)
}

// ErrorToCode maps an error to the HTTP status code of its kind:
//
//	missing/invalid credential        401
//	tenant or scope mismatch          403
//	malformed request                 400
//	unknown or deleted instance       404
//	discovery failure                 503
//	pool wait or command timeout      504
//	unreachable Redis                 502
//	anything else, incl. Redis error  500
//
// Pool-, timeout- and connectivity-class failures are the recoverable ones;
// callers evict the instance's pool when they see them.
func ErrorToCode(err error) int {
	switch {
	case IsUnauthenticated(err):
		return http.StatusUnauthorized
	case trace.IsAccessDenied(err):
		return http.StatusForbidden
	case trace.IsBadParameter(err):
		return http.StatusBadRequest
	case trace.IsNotFound(err):
		return http.StatusNotFound
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	case trace.IsLimitExceeded(err):
		return http.StatusGatewayTimeout
	case trace.IsConnectionProblem(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsRecoverable reports whether err belongs to the transient classes that
// should evict the instance's connection pool so the next request rebuilds
// it from fresh discovery.
func IsRecoverable(err error) bool {
	switch ErrorToCode(err) {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
