package guard

import (
	"context"
	"errors"
	"io"
	"testing"

	"spacehub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeSessions struct {
	resolved bool
	session  *models.Session
	err      error
}

func (f *fakeSessions) IsResolved(int64) bool { return f.resolved }

func (f *fakeSessions) Resolve(context.Context, int64) (*models.Session, error) {
	return f.session, f.err
}

func newGuard(sessions *fakeSessions) *Guard {
	logger := zerolog.New(io.Discard)
	return New(sessions, &logger)
}

func adminSession() *models.Session {
	return &models.Session{UserEmail: "admin@example.com", AccessToken: "tok", Role: models.RoleAdmin}
}

func userSession() *models.Session {
	return &models.Session{UserEmail: "user@example.com", AccessToken: "tok", Role: models.RoleUser}
}

func TestCheckRendersLoadingWhileResolving(t *testing.T) {
	g := newGuard(&fakeSessions{resolved: false})

	res := g.Check(context.Background(), 1, RequireAuthenticated)
	assert.Equal(t, DecisionLoading, res.Decision)
	assert.Empty(t, res.Redirect)
}

func TestAuthorizeMatrix(t *testing.T) {
	tests := []struct {
		name     string
		session  *models.Session
		req      Requirement
		want     Decision
		redirect string
	}{
		{"anonymous visits protected", nil, RequireAuthenticated, DecisionDenied, RedirectLogin},
		{"user visits protected", userSession(), RequireAuthenticated, DecisionAllowed, ""},
		{"anonymous visits admin", nil, RequireAdmin, DecisionDenied, RedirectLogin},
		{"user visits admin", userSession(), RequireAdmin, DecisionDenied, RedirectDashboard},
		{"admin visits admin", adminSession(), RequireAdmin, DecisionAllowed, ""},
		{"user visits login", userSession(), RequireAnonymous, DecisionDenied, RedirectDashboard},
		{"anonymous visits login", nil, RequireAnonymous, DecisionAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGuard(&fakeSessions{resolved: true, session: tt.session})

			res := g.Authorize(context.Background(), 1, tt.req)
			assert.Equal(t, tt.want, res.Decision)
			assert.Equal(t, tt.redirect, res.Redirect)
		})
	}
}

func TestResolveErrorDeniesToLogin(t *testing.T) {
	g := newGuard(&fakeSessions{resolved: true, err: errors.New("keyring unavailable")})

	res := g.Authorize(context.Background(), 1, RequireAuthenticated)
	assert.Equal(t, DecisionDenied, res.Decision)
	assert.Equal(t, RedirectLogin, res.Redirect)
}

func TestTokenWithoutIdentityIsNotAuthenticated(t *testing.T) {
	// A session missing either half of the invariant counts as logged out.
	g := newGuard(&fakeSessions{resolved: true, session: &models.Session{AccessToken: "tok"}})

	res := g.Authorize(context.Background(), 1, RequireAuthenticated)
	assert.Equal(t, DecisionDenied, res.Decision)
	assert.Equal(t, RedirectLogin, res.Redirect)
}

func TestCheckDecidesOnceResolved(t *testing.T) {
	g := newGuard(&fakeSessions{resolved: true, session: userSession()})

	res := g.Check(context.Background(), 1, RequireAuthenticated)
	assert.Equal(t, DecisionAllowed, res.Decision)
}
