package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/example/clubflow/internal/application"
	"github.com/example/clubflow/internal/config"
	httptransport "github.com/example/clubflow/internal/http"
	"github.com/example/clubflow/internal/lock"
	"github.com/example/clubflow/internal/logging"
	"github.com/example/clubflow/internal/persistence"
	"github.com/example/clubflow/internal/persistence/sqlite"
	"github.com/example/clubflow/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("clubflow stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger, time.Now)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("clubflow API listening", "addr", server.Addr, "distributed_lock", cfg.Redis.Enabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}

// app owns the wired dependencies of a running process.
type app struct {
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, now func() time.Time) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pool, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	checks := map[string]httptransport.Pinger{"database": pool}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		locker = lock.NewRedisLocker(client, lock.RedisOptions{Logger: logger})
		checks["redis"] = redisPinger{client: client}
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }

	clubs := newClubRepositoryAdapter(sqlite.NewClubRepository(pool), now)
	members := newMemberRepositoryAdapter(sqlite.NewMemberRepository(pool))
	facilities := newFacilityRepositoryAdapter(sqlite.NewFacilityRepository(pool))
	bookings := newBookingRepositoryAdapter(sqlite.NewBookingRepository(pool))
	events := newEventRepositoryAdapter(sqlite.NewEventRepository(pool))
	sessions := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool))

	facilityService := application.NewFacilityServiceWithLogger(facilities, clubs, idGenerator, now, logger)
	memberService := application.NewMemberServiceWithLogger(members, application.HashPassword, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(members, sessions, nil, tokenGenerator, now, cfg.SessionTTL, logger)
	eventService := application.NewEventServiceWithLogger(events, facilities, idGenerator, now, logger)
	bookingService := application.NewBookingServiceWithOptions(bookings, facilities, locker, idGenerator, now, application.BookingServiceOptions{
		LockTimeout: cfg.LockTimeout,
		Clubs:       clubs,
		Logger:      logger,
	})
	calendarService := application.NewCalendarService(application.CalendarSources{
		Bookings:   bookings,
		Events:     events,
		Members:    members,
		Facilities: facilities,
		Clubs:      clubs,
	}, layoutConfig(cfg.Calendar), logger)

	if cfg.FacilitySeedFile != "" {
		if err := seedFacilities(ctx, facilityService, cfg.FacilitySeedFile); err != nil {
			return nil, err
		}
	}
	if cfg.Bootstrap.Enabled() {
		if err := bootstrapAdmin(ctx, cfg.Bootstrap, clubs, members, idGenerator, now, logger); err != nil {
			return nil, err
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(authService, logger),
		Members:    httptransport.NewMemberHandler(memberService, logger),
		Facilities: httptransport.NewFacilityHandler(facilityService, logger),
		Bookings:   httptransport.NewBookingHandler(bookingService, logger),
		Events:     httptransport.NewEventHandler(eventService, logger),
		Calendar:   httptransport.NewCalendarHandler(calendarService, now, logger),
		Health:     httptransport.NewHealthHandler(checks, logger),
		Session:    httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(httptransport.RateLimitConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
			}, logger),
		},
	})
	a.handler = router
	return a, nil
}

func layoutConfig(cfg config.CalendarConfig) scheduler.LayoutConfig {
	layout := scheduler.DefaultLayoutConfig()
	if cfg.DayEndHour > cfg.DayStartHour {
		layout.DayStartHour = cfg.DayStartHour
		layout.DayEndHour = cfg.DayEndHour
	}
	if cfg.PixelsPerHour > 0 {
		layout.PixelsPerHour = cfg.PixelsPerHour
	}
	return layout
}

func seedFacilities(ctx context.Context, service *application.FacilityService, path string) error {
	seed, err := config.LoadFacilitySeed(path)
	if err != nil {
		return err
	}
	items := make([]application.SeedFacility, 0, len(seed.Facilities))
	for _, item := range seed.Facilities {
		items = append(items, application.SeedFacility{
			ID: item.ID,
			Input: application.FacilityInput{
				Name:          item.Name,
				Location:      item.Location,
				Description:   item.Description,
				MaxConcurrent: item.MaxConcurrent,
			},
		})
	}
	club := application.Club{ID: seed.Club.ID, Name: seed.Club.Name, TimeZone: seed.Club.TimeZone}
	if err := service.SeedFacilities(ctx, club, items); err != nil {
		return fmt.Errorf("failed to seed facilities: %w", err)
	}
	return nil
}

type memberStore interface {
	GetMemberCredentialsByEmail(ctx context.Context, email string) (application.MemberCredentials, error)
	CreateMember(ctx context.Context, creds application.MemberCredentials) (application.Member, error)
}

// bootstrapAdmin creates the configured administrator unless a member with
// that email already exists. The club is created in UTC when missing.
func bootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig, clubs application.ClubRepository, members memberStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	logger = logger.With("club_id", cfg.ClubID, "email", email)

	if _, err := clubs.GetClub(ctx, cfg.ClubID); err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("failed to load bootstrap club: %w", err)
		}
		if err := clubs.UpsertClub(ctx, application.Club{ID: cfg.ClubID, Name: cfg.ClubID, TimeZone: "UTC"}); err != nil {
			return fmt.Errorf("failed to create bootstrap club: %w", err)
		}
	}

	if _, err := members.GetMemberCredentialsByEmail(ctx, email); err == nil {
		logger.Debug("bootstrap administrator already present")
		return nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("failed to look up bootstrap administrator: %w", err)
	}

	if len(cfg.AdminPassword) < application.MinPasswordLength {
		return fmt.Errorf("bootstrap administrator password must be at least %d characters", application.MinPasswordLength)
	}
	hash, err := application.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	ts := now().UTC()
	member, err := members.CreateMember(ctx, application.MemberCredentials{
		Member: application.Member{
			ID:          idGenerator(),
			ClubID:      cfg.ClubID,
			Email:       email,
			DisplayName: "Administrator",
			IsAdmin:     true,
			IsActive:    true,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap administrator: %w", err)
	}
	logger.Info("bootstrap administrator created", "member_id", member.ID)
	return nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
