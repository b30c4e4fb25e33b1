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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command string
		want    string
	}{
		{command: "GET", want: ScopeRead},
		{command: "get", want: ScopeRead},
		{command: "PING", want: ScopeRead},
		{command: "HGETALL", want: ScopeRead},
		{command: "SET", want: ScopeWrite},
		{command: "setex", want: ScopeWrite},
		{command: "DEL", want: ScopeWrite},
		{command: "LPUSH", want: ScopeWrite},
		{command: "FLUSHDB", want: ScopeAdmin},
		{command: "CONFIG", want: ScopeAdmin},
		{command: "", want: ScopeAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			require.Equal(t, tt.want, CommandScope(tt.command))
		})
	}
}

func TestScopesAllow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc   string
		scopes []string
		class  string
		want   bool
	}{
		{desc: "read allows read", scopes: []string{ScopeRead}, class: ScopeRead, want: true},
		{desc: "read denies write", scopes: []string{ScopeRead}, class: ScopeWrite, want: false},
		{desc: "read denies admin", scopes: []string{ScopeRead}, class: ScopeAdmin, want: false},
		{desc: "write allows read", scopes: []string{ScopeWrite}, class: ScopeRead, want: true},
		{desc: "write allows write", scopes: []string{ScopeWrite}, class: ScopeWrite, want: true},
		{desc: "write denies admin", scopes: []string{ScopeWrite}, class: ScopeAdmin, want: false},
		{desc: "admin allows everything", scopes: []string{ScopeAdmin}, class: ScopeAdmin, want: true},
		{desc: "wildcard equals admin", scopes: []string{ScopeWildcard}, class: ScopeAdmin, want: true},
		{desc: "empty denies", scopes: nil, class: ScopeRead, want: false},
		{desc: "unknown scopes deny", scopes: []string{"billing"}, class: ScopeRead, want: false},
		{desc: "any grant suffices", scopes: []string{"billing", ScopeRead}, class: ScopeRead, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			require.Equal(t, tt.want, ScopesAllow(tt.scopes, tt.class))
		})
	}
}

func TestInstanceCheckAndSetDefaults(t *testing.T) {
	t.Parallel()

	inst := Instance{ID: "i-1", OrganizationID: "org-1", Slug: "cache"}
	require.NoError(t, inst.CheckAndSetDefaults())
	require.Equal(t, "default", inst.Namespace)
	require.Equal(t, InstanceStatusCreating, inst.Status)

	tests := []struct {
		desc string
		inst Instance
	}{
		{desc: "missing id", inst: Instance{OrganizationID: "org-1", Slug: "cache"}},
		{desc: "missing org", inst: Instance{ID: "i-1", Slug: "cache"}},
		{desc: "missing slug", inst: Instance{ID: "i-1", OrganizationID: "org-1"}},
		{desc: "bad status", inst: Instance{ID: "i-1", OrganizationID: "org-1", Slug: "cache", Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			require.Error(t, tt.inst.CheckAndSetDefaults())
		})
	}
}

func TestInstanceLiveness(t *testing.T) {
	t.Parallel()

	now := Instance{ID: "i-1", OrganizationID: "org-1", Slug: "cache", Status: InstanceStatusRunning}
	require.True(t, now.IsLive())
	require.False(t, now.IsDeleted())

	deleted := now
	deleted.Status = InstanceStatusDeleted
	require.True(t, deleted.IsDeleted())
	require.False(t, deleted.IsLive())

	creating := now
	creating.Status = InstanceStatusCreating
	require.False(t, creating.IsLive())
}
