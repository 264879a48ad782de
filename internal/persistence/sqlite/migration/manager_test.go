package migration

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) ConnectionManager {
	t.Helper()
	return NewConnectionManager(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "test.db")))
}

func TestMigrationManager_RunMigrations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fsys := fstest.MapFS{
		"m/001_clubs.sql":      {Data: []byte("CREATE TABLE clubs (id TEXT PRIMARY KEY);")},
		"m/002_facilities.sql": {Data: []byte("CREATE TABLE facilities (id TEXT PRIMARY KEY, club_id TEXT REFERENCES clubs(id));\nCREATE INDEX idx_facilities_club ON facilities (club_id);")},
	}

	t.Run("applies pending migrations once", func(t *testing.T) {
		t.Parallel()

		db, err := openTestDB(t).GetConnection()
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer db.Close()

		manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), fsys, "m")
		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("run: %v", err)
		}
		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("second run: %v", err)
		}

		status, err := manager.GetMigrationStatus(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
			t.Fatalf("unexpected status: %+v", status)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO clubs (id) VALUES ('c1')"); err != nil {
			t.Fatalf("expected clubs table: %v", err)
		}
	})

	t.Run("failed migration is rolled back and not recorded", func(t *testing.T) {
		t.Parallel()

		db, err := openTestDB(t).GetConnection()
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer db.Close()

		broken := fstest.MapFS{
			"m/001_clubs.sql":  {Data: []byte("CREATE TABLE clubs (id TEXT PRIMARY KEY);")},
			"m/002_broken.sql": {Data: []byte("CREATE TABLE ok (id TEXT);\nCREATE TABLE clubs (id TEXT);")},
		}
		manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), broken, "m")
		if err := manager.RunMigrations(ctx); !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}

		pending, err := manager.GetPendingMigrations(ctx)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(pending) != 1 || pending[0].Version != "002" {
			t.Fatalf("expected 002 pending, got %+v", pending)
		}
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'").Scan(&count); err != nil {
			t.Fatalf("query: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected partial migration to be rolled back")
		}
	})

	t.Run("gaps are rejected", func(t *testing.T) {
		t.Parallel()

		db, err := openTestDB(t).GetConnection()
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer db.Close()

		gap := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			"m/003_c.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
		}
		manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), gap, "m")
		if err := manager.RunMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("edited migration fails checksum verification", func(t *testing.T) {
		t.Parallel()

		db, err := openTestDB(t).GetConnection()
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer db.Close()

		original := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}}
		if err := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), original, "m").RunMigrations(ctx); err != nil {
			t.Fatalf("run: %v", err)
		}

		edited := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT, name TEXT);")}}
		manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), edited, "m", WithChecksumVerification(true))
		if err := manager.RunMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestConnectionManager(t *testing.T) {
	t.Parallel()

	t.Run("renders pragmas into the DSN", func(t *testing.T) {
		dsn := NewConnectionManager(DefaultSQLiteConfig("/tmp/club.db")).DSN()
		for _, want := range []string{"file:/tmp/club.db?", "foreign_keys%281%29", "_txlock=immediate", "journal_mode%28WAL%29"} {
			if !strings.Contains(dsn, want) {
				t.Fatalf("expected %q in %q", want, dsn)
			}
		}
	})

	t.Run("validates configuration", func(t *testing.T) {
		cfg := DefaultSQLiteConfig("")
		if err := NewConnectionManager(cfg).ValidateConfig(); err == nil {
			t.Fatalf("expected empty path to be rejected")
		}
		cfg = DefaultSQLiteConfig("x.db")
		cfg.JournalMode = "FAST"
		if err := NewConnectionManager(cfg).ValidateConfig(); err == nil {
			t.Fatalf("expected invalid journal mode to be rejected")
		}
	})

	t.Run("foreign keys are enforced on every connection", func(t *testing.T) {
		db, err := openTestDB(t).GetConnection()
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer db.Close()

		var enabled int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("pragma: %v", err)
		}
		if enabled != 1 {
			t.Fatalf("expected foreign keys on")
		}
	})
}

