package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apar/internal/domain/auth"
	"apar/internal/platform/config"
)

type grant struct {
	role       string
	permission string
}

// builtinGrants flattens auth.RolePermissions in a stable order.
func builtinGrants() []grant {
	roles := make([]string, 0, len(auth.RolePermissions))
	for role := range auth.RolePermissions {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var out []grant
	for _, role := range roles {
		for _, perm := range auth.RolePermissions[role] {
			out = append(out, grant{role: role, permission: perm})
		}
	}
	return out
}

// Seed brings the configured tenant, the permission keys and the built-in
// roles in line with auth.RolePermissions in one transaction. Grants removed
// from the code are revoked from built-in roles. It returns the tenant id.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) (string, error) {
	var tenantID string
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
      INSERT INTO tenants (name) VALUES ($1)
      ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id::text
    `, cfg.SeedTenantName).Scan(&tenantID); err != nil {
			return fmt.Errorf("tenant: %w", err)
		}

		batch := &pgx.Batch{}
		for _, perm := range auth.DefaultPermissions {
			batch.Queue("INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		}
		for role, perms := range auth.RolePermissions {
			batch.Queue("INSERT INTO roles (tenant_id, name) VALUES ($1, $2) ON CONFLICT (tenant_id, name) DO NOTHING", tenantID, role)
			batch.Queue(`
        DELETE FROM role_permissions rp
        USING roles r, permissions p
        WHERE rp.role_id = r.id AND rp.permission_id = p.id
          AND r.tenant_id = $1 AND r.name = $2 AND NOT (p.key = ANY($3))
      `, tenantID, role, perms)
		}
		for _, g := range builtinGrants() {
			batch.Queue(`
        INSERT INTO role_permissions (role_id, permission_id)
        SELECT r.id, p.id FROM roles r JOIN permissions p ON p.key = $3
        WHERE r.tenant_id = $1 AND r.name = $2
        ON CONFLICT DO NOTHING
      `, tenantID, g.role, g.permission)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("roles: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("seed: %w", err)
	}
	return tenantID, nil
}
