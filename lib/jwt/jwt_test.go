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

package jwt

import (
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789abcdef0123"

func newTestService(t *testing.T, clock clockwork.Clock) *Service {
	t.Helper()
	svc, err := New(Config{Secret: []byte(testSecret), Clock: clock})
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))

	_, err = New(Config{Secret: []byte(testSecret)})
	require.NoError(t, err)
}

func TestSignAndVerifyAPIKey(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClockAt(time.Now())
	svc := newTestService(t, clock)

	token, err := svc.SignAPIKey(APIKeyParams{
		APIKeyID:       "4f8b9c2a-0000-4000-8000-000000000001",
		OrganizationID: "org-1",
		UserID:         "user-1",
		Scopes:         []string{"read", "write"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	require.True(t, claims.IsAPIKey())
	require.Equal(t, "4f8b9c2a-0000-4000-8000-000000000001", claims.APIKeyID)
	require.Equal(t, "4f8b9c2a-0000-4000-8000-000000000001", claims.Subject)
	require.Equal(t, "org-1", claims.OrganizationID)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, []string{"read", "write"}, claims.Scopes)
	require.Equal(t, "4f8b9c2a", claims.KeyPrefix)
	require.Equal(t, clock.Now().Unix(), claims.IssuedAt.Time().Unix())
	// Default expiry is one year out.
	require.Equal(t, clock.Now().Add(365*24*time.Hour).Unix(), claims.Expiry.Time().Unix())
}

func TestSignAndVerifySession(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClockAt(time.Now())
	svc := newTestService(t, clock)

	token, err := svc.SignSession(SessionParams{
		UserID: "user-7",
		Email:  "user7@example.com",
	})
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	require.False(t, claims.IsAPIKey())
	require.Equal(t, "user-7", claims.UserID)
	require.Equal(t, "user7@example.com", claims.Email)
	require.Empty(t, claims.Scopes)
	require.Equal(t, clock.Now().Add(24*time.Hour).Unix(), claims.Expiry.Time().Unix())
}

func TestVerifyExpiry(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClockAt(time.Now())
	svc := newTestService(t, clock)

	token, err := svc.SignAPIKey(APIKeyParams{
		APIKeyID:       "key-1",
		OrganizationID: "org-1",
		TTL:            time.Hour,
	})
	require.NoError(t, err)

	// Valid until just before expiry.
	clock.Advance(time.Hour - time.Second)
	_, err = svc.Verify(token)
	require.NoError(t, err)

	// Expiry is strict: exp == now already fails.
	clock.Advance(time.Second)
	_, err = svc.Verify(token)
	require.Error(t, err)
	require.True(t, trace.IsAccessDenied(err))

	clock.Advance(time.Hour)
	_, err = svc.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsForgeries(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClockAt(time.Now())
	svc := newTestService(t, clock)

	token, err := svc.SignAPIKey(APIKeyParams{APIKeyID: "key-1", OrganizationID: "org-1"})
	require.NoError(t, err)

	tests := []struct {
		desc  string
		token string
	}{
		{desc: "garbage", token: "not-a-token"},
		{desc: "empty", token: ""},
		{desc: "tampered", token: token[:len(token)-2] + "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			require.Error(t, err)
			require.True(t, trace.IsAccessDenied(err))
		})
	}

	// A token minted under a different secret never verifies.
	other, err := New(Config{Secret: []byte("another-secret-another-secret-00"), Clock: clock})
	require.NoError(t, err)
	foreign, err := other.SignAPIKey(APIKeyParams{APIKeyID: "key-1", OrganizationID: "org-1"})
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	require.Error(t, err)
	require.True(t, trace.IsAccessDenied(err))
}

func TestSignParamsValidation(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, clockwork.NewFakeClockAt(time.Now()))

	_, err := svc.SignAPIKey(APIKeyParams{OrganizationID: "org-1"})
	require.True(t, trace.IsBadParameter(err))

	_, err = svc.SignAPIKey(APIKeyParams{APIKeyID: "key-1"})
	require.True(t, trace.IsBadParameter(err))

	_, err = svc.SignSession(SessionParams{})
	require.True(t, trace.IsBadParameter(err))
}

func TestKeyPrefix(t *testing.T) {
	t.Parallel()

	require.Equal(t, "4f8b9c2a", KeyPrefix("4f8b9c2a-0000-4000-8000-000000000001"))
	require.Equal(t, "short", KeyPrefix("short"))
	require.Equal(t, "", KeyPrefix(""))
}
