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

// Package services defines the descriptor types shared across the gateway
// and the read-only registry interface they are looked up through.
package services

import (
	"context"
	"time"

	"github.com/gravitational/trace"

	"github.com/redisgate/redisgate/lib/defaults"
)

// Instance lifecycle statuses.
const (
	// InstanceStatusCreating means provisioning is still in progress.
	InstanceStatusCreating = "creating"
	// InstanceStatusRunning means the instance is serving.
	InstanceStatusRunning = "running"
	// InstanceStatusFailed means provisioning or the instance itself failed.
	InstanceStatusFailed = "failed"
	// InstanceStatusDeleted means the instance was removed. Deleted
	// instances are invisible to every registry lookup.
	InstanceStatusDeleted = "deleted"
)

// Instance describes a managed Redis endpoint owned by a tenant. Descriptors
// are written by the provisioning plane and are immutable on the request
// path.
type Instance struct {
	// ID is the globally unique instance id.
	ID string `json:"id"`
	// OrganizationID is the owning tenant.
	OrganizationID string `json:"organization_id"`
	// Name is the display name.
	Name string `json:"name,omitempty"`
	// Slug is the DNS-safe, tenant-unique label. Kubernetes objects
	// backing the instance are labeled with it.
	Slug string `json:"slug"`
	// Namespace is the kubernetes namespace the instance runs in.
	Namespace string `json:"namespace,omitempty"`
	// ServiceName is the kubernetes Service fronting the instance, when
	// known ahead of discovery.
	ServiceName string `json:"service_name,omitempty"`
	// Addr is a direct host:port endpoint hint. When set it bypasses
	// service discovery entirely, which is how static dev instances and
	// port-forwards are expressed.
	Addr string `json:"addr,omitempty"`
	// Port is the Redis port, used with local development mappings.
	Port int `json:"port,omitempty"`
	// SecretName references the kubernetes Secret holding the instance
	// password. Empty means the configured default password, or no auth.
	SecretName string `json:"secret_name,omitempty"`
	// Status is one of the InstanceStatus constants.
	Status string `json:"status"`
	// CreatedAt is when the descriptor was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the descriptor last changed.
	UpdatedAt time.Time `json:"updated_at"`
	// DeletedAt marks soft deletion.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// CheckAndSetDefaults validates the descriptor and fills in defaults.
func (i *Instance) CheckAndSetDefaults() error {
	if i.ID == "" {
		return trace.BadParameter("missing parameter ID")
	}
	if i.OrganizationID == "" {
		return trace.BadParameter("missing parameter OrganizationID")
	}
	if i.Slug == "" {
		return trace.BadParameter("missing parameter Slug")
	}
	if i.Namespace == "" {
		i.Namespace = defaults.Namespace
	}
	if i.Status == "" {
		i.Status = InstanceStatusCreating
	}
	switch i.Status {
	case InstanceStatusCreating, InstanceStatusRunning, InstanceStatusFailed, InstanceStatusDeleted:
	default:
		return trace.BadParameter("unsupported instance status %q", i.Status)
	}
	return nil
}

// IsDeleted reports whether the instance must be excluded from lookups.
func (i *Instance) IsDeleted() bool {
	return i.Status == InstanceStatusDeleted || i.DeletedAt != nil
}

// IsLive reports whether the instance is expected to accept connections.
func (i *Instance) IsLive() bool {
	return i.Status == InstanceStatusRunning && !i.IsDeleted()
}

// InstanceRegistry is the read-only view of persisted instance descriptors
// the gateway authorizes and routes against. Writes are the provisioning
// plane's business and happen elsewhere.
type InstanceRegistry interface {
	// GetInstance returns the non-deleted instance with the given id.
	GetInstance(ctx context.Context, id string) (*Instance, error)
	// GetInstanceBySlug returns the tenant's non-deleted instance with
	// the given slug.
	GetInstanceBySlug(ctx context.Context, organizationID, slug string) (*Instance, error)
	// ListInstancesByTenant returns the tenant's non-deleted instances.
	ListInstancesByTenant(ctx context.Context, organizationID string) ([]Instance, error)
	// ListLiveInstances returns every running instance across tenants,
	// consumed by the pool refresh sweep.
	ListLiveInstances(ctx context.Context) ([]Instance, error)
	// Close releases the registry's resources.
	Close() error
}
