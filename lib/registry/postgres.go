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

// Package registry provides the instance registry implementations: a
// postgres-backed one for deployments and an in-memory one for static
// configuration and tests.
package registry

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"

	"github.com/gravitational/trace"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/services"
)

//go:embed schema.sql
var schemaSQL string

// PostgresConfig holds parameters for the postgres-backed registry.
type PostgresConfig struct {
	// ConnString is the database connection string, typically the
	// DATABASE_URL environment value.
	ConnString string
	// Log is the logger. Defaults to the process logger.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *PostgresConfig) CheckAndSetDefaults() error {
	if c.ConnString == "" {
		return trace.BadParameter("missing parameter ConnString")
	}
	if c.Log == nil {
		c.Log = slog.Default().With(redisgate.ComponentKey, redisgate.ComponentRegistry)
	}
	return nil
}

// PostgresRegistry reads instance descriptors from postgres. The gateway
// never writes them; creates and deletes belong to the provisioning plane.
type PostgresRegistry struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresRegistry, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, trace.Wrap(err, "parsing database connection string")
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, trace.Wrap(err, "connecting to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, trace.Wrap(err, "pinging database")
	}
	cfg.Log.InfoContext(ctx, "Connected to instance registry database.")
	return &PostgresRegistry{pool: pool, log: cfg.Log}, nil
}

// Bootstrap creates the registry schema if it does not exist. Development
// and test helper only.
func (r *PostgresRegistry) Bootstrap(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return trace.Wrap(err, "creating registry schema")
	}
	return nil
}

const instanceColumns = `id::text, organization_id::text, name, slug, namespace, service_name, addr, port, secret_name, status, created_at, updated_at, deleted_at`

func scanInstance(row pgx.Row) (*services.Instance, error) {
	var inst services.Instance
	err := row.Scan(
		&inst.ID, &inst.OrganizationID, &inst.Name, &inst.Slug,
		&inst.Namespace, &inst.ServiceName, &inst.Addr, &inst.Port,
		&inst.SecretName, &inst.Status,
		&inst.CreatedAt, &inst.UpdatedAt, &inst.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trace.NotFound("instance not found")
		}
		return nil, trace.Wrap(err)
	}
	return &inst, nil
}

// GetInstance returns the non-deleted instance with the given id.
func (r *PostgresRegistry) GetInstance(ctx context.Context, id string) (*services.Instance, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM redis_instances
		 WHERE id = $1::uuid AND deleted_at IS NULL AND status <> 'deleted'`, id)
	inst, err := scanInstance(row)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.NotFound("instance %q not found", id)
		}
		return nil, trace.Wrap(err)
	}
	return inst, nil
}

// GetInstanceBySlug returns the tenant's non-deleted instance with the slug.
func (r *PostgresRegistry) GetInstanceBySlug(ctx context.Context, organizationID, slug string) (*services.Instance, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM redis_instances
		 WHERE organization_id = $1::uuid AND slug = $2
		   AND deleted_at IS NULL AND status <> 'deleted'`, organizationID, slug)
	inst, err := scanInstance(row)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, trace.NotFound("instance %q not found", slug)
		}
		return nil, trace.Wrap(err)
	}
	return inst, nil
}

// ListInstancesByTenant returns the tenant's non-deleted instances.
func (r *PostgresRegistry) ListInstancesByTenant(ctx context.Context, organizationID string) ([]services.Instance, error) {
	rows, _ := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM redis_instances
		 WHERE organization_id = $1::uuid AND deleted_at IS NULL AND status <> 'deleted'
		 ORDER BY created_at, id`, organizationID)
	return collectInstances(rows)
}

// ListLiveInstances returns every running instance across tenants.
func (r *PostgresRegistry) ListLiveInstances(ctx context.Context) ([]services.Instance, error) {
	rows, _ := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM redis_instances
		 WHERE status = 'running' AND deleted_at IS NULL
		 ORDER BY created_at, id`)
	return collectInstances(rows)
}

func collectInstances(rows pgx.Rows) ([]services.Instance, error) {
	var out []services.Instance
	var inst services.Instance
	_, err := pgx.ForEachRow(rows, []any{
		&inst.ID, &inst.OrganizationID, &inst.Name, &inst.Slug,
		&inst.Namespace, &inst.ServiceName, &inst.Addr, &inst.Port,
		&inst.SecretName, &inst.Status,
		&inst.CreatedAt, &inst.UpdatedAt, &inst.DeletedAt,
	}, func() error {
		out = append(out, inst)
		return nil
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return out, nil
}

// Close releases the database pool.
func (r *PostgresRegistry) Close() error {
	r.pool.Close()
	return nil
}
