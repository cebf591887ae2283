package guard

import (
	"context"

	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

// Decision is the guard verdict for a view request.
type Decision int

const (
	// DecisionLoading means the session is still resolving; render a
	// loading state, never the protected content.
	DecisionLoading Decision = iota
	DecisionDenied
	DecisionAllowed
)

// Requirement describes who may enter a view.
type Requirement int

const (
	// RequireAnonymous gates login/register views away from users who are
	// already signed in.
	RequireAnonymous Requirement = iota
	RequireAuthenticated
	RequireAdmin
)

// Redirect targets for denied requests.
const (
	RedirectLogin     = "/login"
	RedirectDashboard = "/dashboard"
)

// Result carries the verdict and, for denials, where to send the user.
type Result struct {
	Decision Decision
	Redirect string
}

// SessionSource is the slice of the session store the guard needs.
type SessionSource interface {
	IsResolved(userID int64) bool
	Resolve(ctx context.Context, userID int64) (*models.Session, error)
}

// Guard decides whether a user may enter a view. It never renders
// protected content before the session has resolved.
type Guard struct {
	sessions SessionSource
	logger   *zerolog.Logger
}

func New(sessions SessionSource, logger *zerolog.Logger) *Guard {
	return &Guard{sessions: sessions, logger: logger}
}

// Check is the non-blocking verdict: while the session is still being
// restored it returns DecisionLoading without touching the keyring.
func (g *Guard) Check(ctx context.Context, userID int64, req Requirement) Result {
	if !g.sessions.IsResolved(userID) {
		return Result{Decision: DecisionLoading}
	}
	return g.Authorize(ctx, userID, req)
}

// Authorize resolves the session (blocking if needed) and decides.
// A resolution failure denies to the login view, never allows through.
func (g *Guard) Authorize(ctx context.Context, userID int64, req Requirement) Result {
	sess, err := g.sessions.Resolve(ctx, userID)
	if err != nil {
		g.logger.Error().Err(err).Int64("user_id", userID).Msg("session resolve failed, denying access")
		return Result{Decision: DecisionDenied, Redirect: RedirectLogin}
	}

	authenticated := sess.Authenticated()

	switch req {
	case RequireAnonymous:
		if authenticated {
			return Result{Decision: DecisionDenied, Redirect: RedirectDashboard}
		}
		return Result{Decision: DecisionAllowed}

	case RequireAdmin:
		if !authenticated {
			return Result{Decision: DecisionDenied, Redirect: RedirectLogin}
		}
		if !sess.IsAdmin() {
			return Result{Decision: DecisionDenied, Redirect: RedirectDashboard}
		}
		return Result{Decision: DecisionAllowed}

	default: // RequireAuthenticated
		if !authenticated {
			return Result{Decision: DecisionDenied, Redirect: RedirectLogin}
		}
		return Result{Decision: DecisionAllowed}
	}
}
