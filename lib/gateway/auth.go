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
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/julienschmidt/httprouter"

	"github.com/redisgate/redisgate/lib/httplib"
	"github.com/redisgate/redisgate/lib/jwt"
	"github.com/redisgate/redisgate/lib/services"
)

// authContext carries the verified identity and the resolved instance
// through request handling.
type authContext struct {
	claims   *jwt.Claims
	instance *services.Instance
}

// authenticatedHandler is an instance-scoped handler that runs behind the
// authorization gate.
type authenticatedHandler func(w http.ResponseWriter, r *http.Request, p httprouter.Params, authCtx *authContext) (interface{}, error)

// withInstanceAuth wraps an instance-scoped handler with the authorization
// gate: credential extraction, token verification, instance resolution and
// the tenant ownership check. Per-command scope enforcement happens in the
// handlers once the command is known.
func (h *Handler) withInstanceAuth(fn authenticatedHandler) httprouter.Handle {
	return httplib.MakeHandler(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) (interface{}, error) {
		authCtx, err := h.authenticate(r, p.ByName("instance"))
		if err != nil {
			return nil, trace.Wrap(err)
		}
		return fn(w, r, p, authCtx)
	})
}

func (h *Handler) authenticate(r *http.Request, instanceRef string) (*authContext, error) {
	ctx := r.Context()

	token, err := credentialFromRequest(r)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	claims, err := h.cfg.Tokens.Verify(token)
	if err != nil {
		h.log.InfoContext(ctx, "Rejected credential.",
			"request_id", requestID(ctx),
			"token_prefix", tokenPrefix(token),
			"error", err,
		)
		return nil, httplib.Unauthenticated("invalid token")
	}
	// Only api keys may reach instances: their claims carry the tenant and
	// scopes this gate decides on. Session tokens belong to the management
	// surface.
	if !claims.IsAPIKey() {
		return nil, trace.AccessDenied("session tokens cannot access redis instances")
	}

	inst, err := h.lookupInstance(ctx, claims.OrganizationID, instanceRef)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if inst.OrganizationID != claims.OrganizationID {
		h.log.WarnContext(ctx, "Cross-tenant instance access denied.",
			"request_id", requestID(ctx),
			"organization", claims.OrganizationID,
			"instance", inst.ID,
			"key_prefix", claims.KeyPrefix,
		)
		return nil, trace.AccessDenied("instance %q belongs to another organization", instanceRef)
	}
	return &authContext{claims: claims, instance: inst}, nil
}

// lookupInstance resolves the URL instance reference, which is either the
// instance UUID or its tenant-unique slug.
func (h *Handler) lookupInstance(ctx context.Context, organizationID, ref string) (*services.Instance, error) {
	if _, err := uuid.Parse(ref); err == nil {
		inst, err := h.cfg.Registry.GetInstance(ctx, ref)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		return inst, nil
	}
	inst, err := h.cfg.Registry.GetInstanceBySlug(ctx, organizationID, ref)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return inst, nil
}

// authorizeScope enforces the per-command capability check: the command's
// scope class must be granted by the key's scopes.
func (h *Handler) authorizeScope(authCtx *authContext, commandName string) error {
	class := services.CommandScope(commandName)
	if !services.ScopesAllow(authCtx.claims.Scopes, class) {
		return trace.AccessDenied("api key %q does not grant %s access", authCtx.claims.KeyPrefix, class)
	}
	return nil
}

// credentialFromRequest extracts the bearer credential. The Authorization
// header wins over the _token query parameter.
func credentialFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", httplib.Unauthenticated("invalid authorization header")
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("_token"); token != "" {
		return token, nil
	}
	return "", httplib.Unauthenticated("missing credentials")
}

// tokenPrefix returns the loggable handle of a credential: its first eight
// characters, never the full value.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
