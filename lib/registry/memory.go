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

package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/gravitational/trace"

	"github.com/redisgate/redisgate/lib/services"
)

// MemoryRegistry serves instances from memory. It backs static file
// configuration in development and the test suites.
type MemoryRegistry struct {
	mu        sync.RWMutex
	instances map[string]services.Instance
}

// NewMemory builds a memory registry seeded with the given instances.
func NewMemory(seed ...services.Instance) (*MemoryRegistry, error) {
	r := &MemoryRegistry{instances: make(map[string]services.Instance, len(seed))}
	for i := range seed {
		inst := seed[i]
		if err := inst.CheckAndSetDefaults(); err != nil {
			return nil, trace.Wrap(err)
		}
		if _, ok := r.instances[inst.ID]; ok {
			return nil, trace.BadParameter("duplicate instance id %q", inst.ID)
		}
		if err := r.checkSlugFree(inst); err != nil {
			return nil, trace.Wrap(err)
		}
		r.instances[inst.ID] = inst
	}
	return r, nil
}

// Upsert adds or replaces an instance.
func (r *MemoryRegistry) Upsert(inst services.Instance) error {
	if err := inst.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkSlugFree(inst); err != nil {
		return trace.Wrap(err)
	}
	r.instances[inst.ID] = inst
	return nil
}

// checkSlugFree enforces tenant-unique slugs among non-deleted instances, the
// same constraint the database schema carries as a partial unique index.
// Callers hold the lock or own the registry exclusively.
func (r *MemoryRegistry) checkSlugFree(inst services.Instance) error {
	if inst.IsDeleted() {
		return nil
	}
	for _, existing := range r.instances {
		if existing.ID != inst.ID &&
			existing.OrganizationID == inst.OrganizationID &&
			existing.Slug == inst.Slug &&
			!existing.IsDeleted() {
			return trace.BadParameter("instance slug %q already in use in organization %q", inst.Slug, inst.OrganizationID)
		}
	}
	return nil
}

// Remove deletes an instance by id. Removing a missing id is a no-op.
func (r *MemoryRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}

// GetInstance returns the non-deleted instance with the given id.
func (r *MemoryRegistry) GetInstance(ctx context.Context, id string) (*services.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok || inst.IsDeleted() {
		return nil, trace.NotFound("instance %q not found", id)
	}
	out := inst
	return &out, nil
}

// GetInstanceBySlug returns the tenant's non-deleted instance with the slug.
func (r *MemoryRegistry) GetInstanceBySlug(ctx context.Context, organizationID, slug string) (*services.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.instances {
		if inst.OrganizationID == organizationID && inst.Slug == slug && !inst.IsDeleted() {
			out := inst
			return &out, nil
		}
	}
	return nil, trace.NotFound("instance %q not found", slug)
}

// ListInstancesByTenant returns the tenant's non-deleted instances.
func (r *MemoryRegistry) ListInstancesByTenant(ctx context.Context, organizationID string) ([]services.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []services.Instance
	for _, inst := range r.instances {
		if inst.OrganizationID == organizationID && !inst.IsDeleted() {
			out = append(out, inst)
		}
	}
	sortInstances(out)
	return out, nil
}

// ListLiveInstances returns every running instance across tenants.
func (r *MemoryRegistry) ListLiveInstances(ctx context.Context) ([]services.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []services.Instance
	for _, inst := range r.instances {
		if inst.IsLive() {
			out = append(out, inst)
		}
	}
	sortInstances(out)
	return out, nil
}

// Close implements services.InstanceRegistry.
func (r *MemoryRegistry) Close() error {
	return nil
}

func sortInstances(list []services.Instance) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
