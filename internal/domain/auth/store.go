package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store resolves permissions from the seeded role tables.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// HasPermission accepts either a role id or a role name.
func (s *Store) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM role_permissions rp
    JOIN roles r ON r.id = rp.role_id
    JOIN permissions p ON p.id = rp.permission_id
    WHERE (r.id::text = $1 OR r.name = $1) AND p.key = $2
  `, role, permission).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// StaticPermissions resolves permissions from RolePermissions by role name.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}
