package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/clubflow/internal/persistence/sqlite"
	"github.com/example/clubflow/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database holding the default club.
type SQLiteHarness struct {
	Pool       *sqlite.ConnectionPool
	Clubs      *sqlite.ClubRepository
	Members    *sqlite.MemberRepository
	Facilities *sqlite.FacilityRepository
	Bookings   *sqlite.BookingRepository
	Events     *sqlite.EventRepository
	Sessions   *sqlite.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness in tb's temp directory. Close
// is registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "clubflow.db")
	pool, err := sqlite.NewConnectionPool(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:       pool,
		Clubs:      sqlite.NewClubRepository(pool),
		Members:    sqlite.NewMemberRepository(pool),
		Facilities: sqlite.NewFacilityRepository(pool),
		Bookings:   sqlite.NewBookingRepository(pool),
		Events:     sqlite.NewEventRepository(pool),
		Sessions:   sqlite.NewSessionRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}
	if err := harness.Clubs.UpsertClub(context.Background(), ClubFixture()); err != nil {
		harness.Close()
		tb.Fatalf("failed to create club: %v", err)
	}

	tb.Cleanup(harness.Close)
	return harness
}

// AddMember stores member.
func (h *SQLiteHarness) AddMember(tb testing.TB, member MemberFixture) {
	tb.Helper()
	if err := h.Members.CreateMember(context.Background(), member.Persistence()); err != nil {
		tb.Fatalf("failed to create member %s: %v", member.ID, err)
	}
}

// AddFacility stores facility.
func (h *SQLiteHarness) AddFacility(tb testing.TB, facility FacilityFixture) {
	tb.Helper()
	if err := h.Facilities.CreateFacility(context.Background(), facility.Persistence()); err != nil {
		tb.Fatalf("failed to create facility %s: %v", facility.ID, err)
	}
}
