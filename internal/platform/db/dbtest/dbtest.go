// Package dbtest opens the Postgres database named by TEST_DATABASE_URL for
// store tests and skips them when it is unset.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"apar/internal/platform/config"
	"apar/internal/platform/db"
)

// Open connects and migrates. The pool is closed when the test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dbURL, RolloutConcurrency: 4})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// Tenant inserts a throwaway tenant and deletes it, with everything it owns,
// after the test.
func Tenant(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(context.Background(),
		`INSERT INTO tenants (name) VALUES ($1) RETURNING id::text`, "test-"+uuid.NewString()).Scan(&id); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), `DELETE FROM tenants WHERE id = $1`, id); err != nil {
			t.Logf("delete tenant %s: %v", id, err)
		}
	})
	return id
}
