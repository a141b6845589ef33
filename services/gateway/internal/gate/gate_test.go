package gate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	access Access
	err    error
}

func (s stubChecker) Access(string) (Access, error) {
	return s.access, s.err
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		token   string
		checker stubChecker
		want    Outcome
	}{
		{
			name:  "missing token redirects to login",
			path:  "/dashboard/campaigns",
			token: "",
			want:  RedirectLogin,
		},
		{
			name:    "invalid session redirects to login",
			path:    "/dashboard/campaigns",
			token:   "t",
			checker: stubChecker{err: ErrInvalidSession},
			want:    RedirectLogin,
		},
		{
			name:    "blocked user redirected on any protected path",
			path:    "/chat/conversations",
			token:   "t",
			checker: stubChecker{access: Access{UserID: "u1", IsBlocked: true}},
			want:    RedirectBlocked,
		},
		{
			name:    "blocked admin still redirected",
			path:    "/dashboard/admin/stats",
			token:   "t",
			checker: stubChecker{access: Access{UserID: "u1", IsBlocked: true, IsAdmin: true}},
			want:    RedirectBlocked,
		},
		{
			name:    "non-admin bounced off admin area",
			path:    "/dashboard/admin/users",
			token:   "t",
			checker: stubChecker{access: Access{UserID: "u1"}},
			want:    RedirectDashboard,
		},
		{
			name:    "admin path without trailing segment",
			path:    "/dashboard/admin",
			token:   "t",
			checker: stubChecker{access: Access{UserID: "u1"}},
			want:    RedirectDashboard,
		},
		{
			name:    "admin enters admin area",
			path:    "/dashboard/admin/users",
			token:   "t",
			checker: stubChecker{access: Access{UserID: "u1", IsAdmin: true}},
			want:    Forward,
		},
		{
			name:    "regular user forwarded",
			path:    "/dashboard/campaigns",
			token:   "t",
			checker: stubChecker{access: Access{UserID: "u1"}},
			want:    Forward,
		},
		{
			name:    "unknown user treated as not blocked",
			path:    "/dashboard/campaigns",
			token:   "t",
			checker: stubChecker{err: ErrUnknownUser},
			want:    Forward,
		},
		{
			name:    "unknown user still no admin",
			path:    "/dashboard/admin/users",
			token:   "t",
			checker: stubChecker{err: ErrUnknownUser},
			want:    RedirectDashboard,
		},
		{
			name:    "lookup failure never forwards",
			path:    "/dashboard/campaigns",
			token:   "t",
			checker: stubChecker{err: errors.New("connection refused")},
			want:    Unavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(tc.checker)
			if got := g.Evaluate(tc.path, tc.token); got != tc.want {
				t.Fatalf("Evaluate(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestMiddlewareRendersDecisions(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("navigation redirect", func(t *testing.T) {
		g := New(stubChecker{access: Access{UserID: "u1", IsBlocked: true}})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/campaigns", nil)
		req.Header.Set("Authorization", "Bearer t")
		Middleware(g, next).ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != BlockedPath {
			t.Fatalf("location = %q, want %q", loc, BlockedPath)
		}
	})

	t.Run("json client gets json error", func(t *testing.T) {
		g := New(stubChecker{access: Access{UserID: "u1", IsBlocked: true}})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/campaigns", nil)
		req.Header.Set("Authorization", "Bearer t")
		req.Header.Set("Accept", "application/json")
		Middleware(g, next).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
	})

	t.Run("lookup failure is 503", func(t *testing.T) {
		g := New(stubChecker{err: errors.New("connection refused")})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/campaigns", nil)
		req.Header.Set("Authorization", "Bearer t")
		Middleware(g, next).ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("websocket token query param accepted", func(t *testing.T) {
		g := New(stubChecker{access: Access{UserID: "u1"}})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/chat/ws?token=t", nil)
		Middleware(g, next).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}
