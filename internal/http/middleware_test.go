package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/clubflow/internal/application"
)

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name        string
			cookie      *http.Cookie
			header      string
			validateErr error
			wantStatus  int
		}{
			{
				name:       "missing credentials",
				wantStatus: http.StatusUnauthorized,
			},
			{
				name:       "malformed authorization header",
				header:     "Token abc",
				wantStatus: http.StatusUnauthorized,
			},
			{
				name:        "revoked session",
				cookie:      &http.Cookie{Name: "session_token", Value: "revoked-token"},
				validateErr: application.ErrSessionRevoked,
				wantStatus:  http.StatusUnauthorized,
			},
			{
				name:        "unknown session",
				header:      "Bearer unknown",
				validateErr: application.ErrNotFound,
				wantStatus:  http.StatusUnauthorized,
			},
			{
				name:        "storage failure",
				header:      "Bearer transient",
				validateErr: errors.New("disk I/O error"),
				wantStatus:  http.StatusInternalServerError,
			},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookie != nil {
					req.AddCookie(tc.cookie)
				}
				if tc.header != "" {
					req.Header.Set("Authorization", tc.header)
				}
				rec := httptest.NewRecorder()

				handler := RequireSession(fakeSessionValidator{err: tc.validateErr}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(rec, req)

				if rec.Code != tc.wantStatus {
					t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
				}
				var body errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.ErrorCode == "" {
					t.Fatalf("expected an error code in %+v", body)
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{MemberID: "member-1", ClubID: "club-1", IsAdmin: true}
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		rec := httptest.NewRecorder()

		var captured application.Principal
		handler := RequireSession(fakeSessionValidator{principal: principal}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			captured = p
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if captured != principal {
			t.Fatalf("principal = %+v, want %+v", captured, principal)
		}
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("rejects bursts beyond the limit per client", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		limited := RateLimit(RateLimitConfig{RPS: 1, Burst: 2, Now: func() time.Time { return now }}, nil)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
		)

		send := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			return rec
		}

		for i := 0; i < 2; i++ {
			if rec := send("10.0.0.1:5000"); rec.Code != http.StatusNoContent {
				t.Fatalf("request %d status = %d, want 204", i, rec.Code)
			}
		}
		rec := send("10.0.0.1:5001")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}
		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.ErrorCode != codeRateLimited {
			t.Fatalf("errorCode = %q, want %q", body.ErrorCode, codeRateLimited)
		}

		if rec := send("10.0.0.2:5000"); rec.Code != http.StatusNoContent {
			t.Fatalf("other client status = %d, want 204", rec.Code)
		}

		now = now.Add(time.Second)
		if rec := send("10.0.0.1:5002"); rec.Code != http.StatusNoContent {
			t.Fatalf("status after refill = %d, want 204", rec.Code)
		}
	})

	t.Run("is a no-op without a rate", func(t *testing.T) {
		t.Parallel()

		handler := RateLimit(RateLimitConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		for i := 0; i < 10; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusNoContent {
				t.Fatalf("request %d status = %d", i, rec.Code)
			}
		}
	})
}

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	return f.principal, f.err
}
