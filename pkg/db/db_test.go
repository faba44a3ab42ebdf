package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "pmgmt.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// A second run must be a no-op.
	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	for _, table := range []string{"hosts", "update_runs", "package_updates", "audit"} {
		if !d.ORM.Migrator().HasTable(table) {
			t.Errorf("table %s missing after migration", table)
		}
	}

	var fk int
	if err := d.SQL.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	if err := d.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "mysql"}); err == nil {
		t.Fatal("Open() with unknown driver succeeded")
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("/var/lib/pmgmt/pmgmt.db")
	if !strings.HasPrefix(dsn, "file:/var/lib/pmgmt/pmgmt.db?") {
		t.Fatalf("SQLiteDSN() = %q", dsn)
	}
	for _, want := range []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate", "_journal_mode=WAL"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("SQLiteDSN() = %q, missing %s", dsn, want)
		}
	}
}
