package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"kreatorboard/services/gateway/internal/authclient"
	"kreatorboard/services/gateway/internal/marketclient"
)

// accessStub stands in for the auth service's /auth/access endpoint.
type accessStub struct {
	status    int
	isBlocked bool
	isAdmin   bool
}

func (a accessStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/auth/access" {
		http.NotFound(w, r)
		return
	}
	if a.status != http.StatusOK {
		w.WriteHeader(a.status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"userId":    "user-1",
		"isBlocked": a.isBlocked,
		"isAdmin":   a.isAdmin,
	})
}

func newGatedServer(t *testing.T, access accessStub) *httptest.Server {
	t.Helper()
	authSrv := httptest.NewServer(access)
	t.Cleanup(authSrv.Close)
	marketSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}, "count": 0})
	}))
	t.Cleanup(marketSrv.Close)
	redis := miniredis.RunT(t)

	gw, err := New(Config{
		Auth:      authclient.NewClient(authSrv.URL),
		Market:    marketclient.NewClient(marketSrv.URL),
		RedisAddr: redis.Addr(),
	})
	if err != nil {
		t.Fatalf("new gateway server: %v", err)
	}
	gwSrv := httptest.NewServer(gw.Router())
	t.Cleanup(gwSrv.Close)
	return gwSrv
}

// noRedirectClient returns redirect responses instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func gateGet(t *testing.T, srv *httptest.Server, path, token, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := noRedirectClient().Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGateRedirectsMissingSessionToLogin(t *testing.T) {
	srv := newGatedServer(t, accessStub{status: http.StatusOK})

	resp := gateGet(t, srv, "/dashboard/campaigns", "", "")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("location = %q, want /login", loc)
	}
}

func TestGateRedirectsInvalidSessionToLogin(t *testing.T) {
	srv := newGatedServer(t, accessStub{status: http.StatusUnauthorized})

	resp := gateGet(t, srv, "/dashboard/campaigns", "bad-token", "")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("location = %q, want /login", loc)
	}
}

func TestGateRedirectsBlockedUser(t *testing.T) {
	srv := newGatedServer(t, accessStub{status: http.StatusOK, isBlocked: true})

	for _, path := range []string{"/dashboard/campaigns", "/chat/conversations", "/dashboard/admin/stats"} {
		resp := gateGet(t, srv, path, "token", "")
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: status = %d, want 303", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/blocked" {
			t.Fatalf("%s: location = %q, want /blocked", path, loc)
		}
	}
}

func TestGateBlockedUserJSONClient(t *testing.T) {
	srv := newGatedServer(t, accessStub{status: http.StatusOK, isBlocked: true})

	resp := gateGet(t, srv, "/dashboard/campaigns", "token", "application/json")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected json error body")
	}
}

func TestGateBouncesNonAdminOffAdminArea(t *testing.T) {
	srv := newGatedServer(t, accessStub{status: http.StatusOK})

	resp := gateGet(t, srv, "/dashboard/admin/stats", "token", "")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("location = %q, want /dashboard", loc)
	}
}

func TestGateMissingUserRowIsNotBlocked(t *testing.T) {
	// The auth service answers 404: valid session, no user row. The gate
	// lets the request through; the backing call then fails on its own
	// terms rather than at the gate.
	srv := newGatedServer(t, accessStub{status: http.StatusNotFound})

	resp := gateGet(t, srv, "/dashboard/campaigns", "token", "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gate refused a not-blocked user: status %d", resp.StatusCode)
	}
}

func TestGateLookupFailureNeverForwards(t *testing.T) {
	srv := newGatedServer(t, accessStub{status: http.StatusInternalServerError})

	resp := gateGet(t, srv, "/dashboard/campaigns", "token", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestGateAuthServiceDownNeverForwards(t *testing.T) {
	authSrv := httptest.NewServer(http.NotFoundHandler())
	authURL := authSrv.URL
	authSrv.Close() // connection refused from here on
	redis := miniredis.RunT(t)

	gw, err := New(Config{
		Auth:      authclient.NewClient(authURL),
		RedisAddr: redis.Addr(),
	})
	if err != nil {
		t.Fatalf("new gateway server: %v", err)
	}
	gwSrv := httptest.NewServer(gw.Router())
	defer gwSrv.Close()

	resp := gateGet(t, gwSrv, "/dashboard/campaigns", "token", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}
