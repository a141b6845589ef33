package gate

import (
	"errors"
	"strings"
)

// Outcome is the gate's decision for one request.
type Outcome int

const (
	// Forward lets the request through to the protected handler.
	Forward Outcome = iota
	// RedirectLogin sends the visitor to the login page.
	RedirectLogin
	// RedirectBlocked sends a blocked account to the blocked notice.
	RedirectBlocked
	// RedirectDashboard bounces non-admins off the admin area.
	RedirectDashboard
	// Unavailable means the access lookup failed; the request is refused
	// rather than let through on stale assumptions.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Forward:
		return "forward"
	case RedirectLogin:
		return "redirect_login"
	case RedirectBlocked:
		return "redirect_blocked"
	case RedirectDashboard:
		return "redirect_dashboard"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Access carries the session flags the gate decides on.
type Access struct {
	UserID    string
	IsBlocked bool
	IsAdmin   bool
}

// Sentinels a Checker uses to classify lookup failures.
var (
	// ErrInvalidSession means the session token did not verify.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUnknownUser means the auth service authoritatively answered that
	// no user row exists for the session subject.
	ErrUnknownUser = errors.New("unknown user")
)

// Checker resolves a session token to access flags. Any error other than
// the two sentinels counts as a lookup failure.
type Checker interface {
	Access(token string) (Access, error)
}

// Gate decides whether a request may enter the protected area.
type Gate struct {
	checker Checker
}

func New(checker Checker) *Gate {
	return &Gate{checker: checker}
}

// Evaluate runs the check sequence for path with the given session token.
// The order is fixed: session validity first, then the block flag, then the
// admin requirement for admin paths.
func (g *Gate) Evaluate(path, token string) Outcome {
	if strings.TrimSpace(token) == "" {
		return RedirectLogin
	}
	access, err := g.checker.Access(token)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidSession):
		return RedirectLogin
	case errors.Is(err, ErrUnknownUser):
		// No row for a valid session subject: not blocked, not admin.
		access = Access{}
	default:
		return Unavailable
	}
	if access.IsBlocked {
		return RedirectBlocked
	}
	if isAdminPath(path) && !access.IsAdmin {
		return RedirectDashboard
	}
	return Forward
}

func isAdminPath(path string) bool {
	return path == "/dashboard/admin" || strings.HasPrefix(path, "/dashboard/admin/")
}
