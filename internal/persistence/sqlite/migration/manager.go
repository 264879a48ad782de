package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
)

type migrationManager struct {
	scanner        FileScanner
	executor       Executor
	fsys           fs.FS
	dir            string
	verifyChecksum bool
	logger         *slog.Logger
}

// ManagerOption customizes a MigrationManager.
type ManagerOption func(*migrationManager)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *migrationManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithChecksumVerification rejects applied migrations whose file changed.
func WithChecksumVerification(enabled bool) ManagerOption {
	return func(m *migrationManager) {
		m.verifyChecksum = enabled
	}
}

// NewMigrationManager creates a MigrationManager reading dir from fsys.
func NewMigrationManager(scanner FileScanner, executor Executor, fsys fs.FS, dir string, opts ...ManagerOption) MigrationManager {
	m := &migrationManager{
		scanner:  scanner,
		executor: executor,
		fsys:     fsys,
		dir:      dir,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunMigrations applies every pending migration in version order and stops
// at the first failure.
func (m *migrationManager) RunMigrations(ctx context.Context) error {
	logger := m.logger.With("component", "migration", "dir", m.dir)

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to determine pending migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	for i, migration := range pending {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "file", migration.FilePath, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"total", len(pending),
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return nil
}

// GetPendingMigrations returns the migrations not yet recorded as applied.
func (m *migrationManager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, applied, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return pendingOf(available, applied), nil
}

// GetMigrationStatus reports the current version and pending migrations.
func (m *migrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	available, applied, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	pending := pendingOf(available, applied)

	status := &MigrationStatus{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	highest := -1
	for _, a := range applied {
		if v := versionNumber(a.Version); v > highest {
			highest = v
			status.CurrentVersion = a.Version
		}
	}
	return status, nil
}

func (m *migrationManager) load(ctx context.Context) ([]Migration, []AppliedMigration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	available, err := m.scanner.ScanMigrations(m.fsys, m.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get applied versions: %w", err)
	}
	if err := m.validateSequence(available, applied); err != nil {
		return nil, nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}
	return available, applied, nil
}

func pendingOf(available []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[versionNumber(a.Version)] = true
	}
	var pending []Migration
	for _, migration := range available {
		if !done[versionNumber(migration.Version)] {
			pending = append(pending, migration)
		}
	}
	return pending
}

// validateSequence requires contiguous versions and a file for every applied
// version. available must be sorted.
func (m *migrationManager) validateSequence(available []Migration, applied []AppliedMigration) error {
	files := make(map[int]Migration, len(available))
	for i, migration := range available {
		version := versionNumber(migration.Version)
		if i > 0 {
			if prev := versionNumber(available[i-1].Version); version != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, prev+1)
			}
		}
		files[version] = migration
	}

	for _, a := range applied {
		version, err := strconv.Atoi(a.Version)
		if err != nil {
			return NewDatabaseError(a.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrVersionTableCorrupt, a.Version))
		}
		file, ok := files[version]
		if !ok {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations", ErrVersionConflict, version)
		}
		if m.verifyChecksum && a.Checksum != "" && a.Checksum != file.Checksum {
			return NewMigrationError(file.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
