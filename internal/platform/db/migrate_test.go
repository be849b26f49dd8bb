package db

import (
	"testing"
	"testing/fstest"
)

func TestMigrationNamesSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql":   {Data: []byte("SELECT 2")},
		"m/0001_a.sql":   {Data: []byte("SELECT 1")},
		"m/README.md":    {Data: []byte("notes")},
		"m/nested/x.sql": {Data: []byte("SELECT 3")},
	}
	names, err := migrationNames(fsys, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_a.sql" || names[1] != "0002_b.sql" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := migrationNames(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_init.sql" {
		t.Fatalf("expected 0001_init.sql first, got %v", names)
	}
}
