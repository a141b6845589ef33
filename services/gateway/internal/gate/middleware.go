package gate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Redirect targets for navigation requests.
const (
	LoginPath     = "/login"
	BlockedPath   = "/blocked"
	DashboardPath = "/dashboard"
)

// Middleware applies the gate in front of next. Navigation requests get a
// 303 redirect; clients asking for JSON get a JSON error with a matching
// status code.
func Middleware(g *Gate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := g.Evaluate(r.URL.Path, requestToken(r))
		if outcome == Forward {
			next.ServeHTTP(w, r)
			return
		}
		slog.Warn("gate refused request",
			"path", r.URL.Path,
			"method", r.Method,
			"outcome", outcome.String(),
		)
		deny(w, r, outcome)
	})
}

// requestToken takes the session token from the Authorization header, or
// from the token query parameter for websocket upgrades.
func requestToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func deny(w http.ResponseWriter, r *http.Request, outcome Outcome) {
	if wantsJSON(r) {
		status, msg := jsonDenial(outcome)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}
	if outcome == Unavailable {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, redirectTarget(outcome), http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func jsonDenial(outcome Outcome) (int, string) {
	switch outcome {
	case RedirectLogin:
		return http.StatusUnauthorized, "unauthorized"
	case RedirectBlocked:
		return http.StatusForbidden, "account blocked"
	case RedirectDashboard:
		return http.StatusForbidden, "admin access required"
	default:
		return http.StatusServiceUnavailable, "service unavailable"
	}
}

func redirectTarget(outcome Outcome) string {
	switch outcome {
	case RedirectBlocked:
		return BlockedPath
	case RedirectDashboard:
		return DashboardPath
	default:
		return LoginPath
	}
}
