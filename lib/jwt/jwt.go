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

// Package jwt issues and verifies the self-contained bearer tokens that
// authenticate gateway requests. Verification needs no I/O beyond the
// signature check: tenant identity and capability scopes travel inside the
// token, signed with the process-wide symmetric secret.
package jwt

import (
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/redisgate/redisgate/lib/defaults"
)

// Config holds parameters for the token service.
type Config struct {
	// Secret is the symmetric signing key. Required.
	Secret []byte
	// Clock is used for issuance and expiry checks.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if len(c.Secret) == 0 {
		return trace.BadParameter("missing parameter Secret")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Service signs and verifies bearer tokens.
type Service struct {
	cfg    Config
	signer jose.Signer
}

// New returns a token service signing with the configured secret.
func New(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.HS256,
		Key:       cfg.Secret,
	}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, trace.Wrap(err, "creating signer")
	}
	return &Service{cfg: cfg, signer: signer}, nil
}

// Claims is the payload carried by every gateway token. Two disjoint shapes
// share the struct: api-key tokens carry APIKeyID (plus organization and
// scopes), user session tokens do not. Consumers must branch on IsAPIKey.
type Claims struct {
	*jwt.Claims

	// UserID identifies the user the token was issued to or on behalf of.
	UserID string `json:"user_id,omitempty"`
	// Email is the user's email, set on session tokens.
	Email string `json:"email,omitempty"`
	// OrganizationID is the tenant the token grants access to.
	OrganizationID string `json:"organization_id,omitempty"`
	// APIKeyID identifies the api key this token represents. Its presence
	// is what makes a token api-key shaped.
	APIKeyID string `json:"api_key_id,omitempty"`
	// KeyPrefix is the api key's display handle.
	KeyPrefix string `json:"key_prefix,omitempty"`
	// Scopes are the capability scopes granted to an api key.
	Scopes []string `json:"scopes,omitempty"`
}

// IsAPIKey reports whether the claims are api-key shaped.
func (c *Claims) IsAPIKey() bool {
	return c.APIKeyID != ""
}

// KeyPrefix derives the display handle for an api key id: its first few
// characters, enough to recognize a key in logs and listings without
// exposing a usable credential.
func KeyPrefix(apiKeyID string) string {
	if len(apiKeyID) <= defaults.KeyPrefixLength {
		return apiKeyID
	}
	return apiKeyID[:defaults.KeyPrefixLength]
}

// APIKeyParams are the inputs for minting an api-key token.
type APIKeyParams struct {
	// APIKeyID is the key's unique id, becomes the token subject. Required.
	APIKeyID string
	// OrganizationID is the owning tenant. Required.
	OrganizationID string
	// UserID is the user the key was created by.
	UserID string
	// Scopes are the capability scopes to embed.
	Scopes []string
	// TTL is the token lifetime. Zero means the default of one year.
	// Negative values produce an already-expired token, which is only
	// useful in tests.
	TTL time.Duration
}

// Check validates the parameters.
func (p *APIKeyParams) Check() error {
	if p.APIKeyID == "" {
		return trace.BadParameter("missing parameter APIKeyID")
	}
	if p.OrganizationID == "" {
		return trace.BadParameter("missing parameter OrganizationID")
	}
	return nil
}

// SignAPIKey mints a signed api-key token.
func (s *Service) SignAPIKey(p APIKeyParams) (string, error) {
	if err := p.Check(); err != nil {
		return "", trace.Wrap(err)
	}
	ttl := p.TTL
	if ttl == 0 {
		ttl = defaults.APIKeyTTL
	}
	now := s.cfg.Clock.Now()
	return s.sign(&Claims{
		Claims: &jwt.Claims{
			Subject:  p.APIKeyID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		APIKeyID:       p.APIKeyID,
		KeyPrefix:      KeyPrefix(p.APIKeyID),
		Scopes:         p.Scopes,
	})
}

// SessionParams are the inputs for minting a user session token.
type SessionParams struct {
	// UserID is the authenticated user, becomes the token subject. Required.
	UserID string
	// Email is the user's email.
	Email string
	// OrganizationID is the tenant the session is bound to, if any.
	OrganizationID string
	// TTL is the token lifetime. Zero means the default of 24 hours.
	TTL time.Duration
}

// Check validates the parameters.
func (p *SessionParams) Check() error {
	if p.UserID == "" {
		return trace.BadParameter("missing parameter UserID")
	}
	return nil
}

// SignSession mints a signed user session token.
func (s *Service) SignSession(p SessionParams) (string, error) {
	if err := p.Check(); err != nil {
		return "", trace.Wrap(err)
	}
	ttl := p.TTL
	if ttl == 0 {
		ttl = defaults.SessionTTL
	}
	now := s.cfg.Clock.Now()
	return s.sign(&Claims{
		Claims: &jwt.Claims{
			Subject:  p.UserID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:         p.UserID,
		Email:          p.Email,
		OrganizationID: p.OrganizationID,
	})
}

func (s *Service) sign(claims *Claims) (string, error) {
	token, err := jwt.Signed(s.signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", trace.Wrap(err, "signing token")
	}
	return token, nil
}

// Verify parses the compact token, checks its signature against the service
// secret and enforces strict expiry: a token with exp <= now never
// verifies, with zero skew tolerance. All failures come back as access
// denied so callers cannot distinguish forged from expired credentials by
// error type alone.
func (s *Service) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, trace.AccessDenied("invalid token")
	}
	var claims Claims
	if err := parsed.Claims(s.cfg.Secret, &claims); err != nil {
		return nil, trace.AccessDenied("invalid token")
	}
	if claims.Claims == nil || claims.Expiry == nil || claims.IssuedAt == nil {
		return nil, trace.AccessDenied("token missing required claims")
	}
	now := s.cfg.Clock.Now()
	if !now.Before(claims.Expiry.Time()) {
		return nil, trace.AccessDenied("token expired")
	}
	if err := claims.ValidateWithLeeway(jwt.Expected{Time: now}, 0); err != nil {
		return nil, trace.AccessDenied("invalid token")
	}
	return &claims, nil
}
