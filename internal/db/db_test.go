package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
)

func TestMigrate_UsesEmbeddedMigrationsAndWrapsErrors(t *testing.T) {
	// pgxpool connects lazily, nothing listens on this address
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/weatherhub?sslmode=disable")
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()

	boom := errors.New("boom")
	var gotDir string

	orig := gooseUp
	gooseUp = func(_ context.Context, db *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		if db == nil {
			t.Fatalf("expected a database handle")
		}
		gotDir = dir
		return boom
	}
	t.Cleanup(func() { gooseUp = orig })

	err = Migrate(context.Background(), pool)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if gotDir != "." {
		t.Fatalf("dir = %q, want %q", gotDir, ".")
	}
}
