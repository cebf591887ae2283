package session

import (
	"context"
	"encoding/json"
	"sync"

	"spacehub/internal/domain"
	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

// Store is the single source of truth for "who is logged in", keyed by the
// front-end user. Sessions are mirrored into the durable keyring on every
// mutation (three flat entries per user) so they survive a restart; there is
// no cross-process invalidation.
type Store struct {
	keyring  domain.SessionKeyring
	auth     domain.AuthService
	eventBus domain.EventPublisher
	logger   *zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*models.Session
	resolved map[int64]bool
	inflight map[int64]*refreshCall
}

// refreshCall lets concurrent 401 handlers share one refresh round-trip.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

func NewStore(keyring domain.SessionKeyring, auth domain.AuthService, eventBus domain.EventPublisher, logger *zerolog.Logger) *Store {
	return &Store{
		keyring:  keyring,
		auth:     auth,
		eventBus: eventBus,
		logger:   logger,
		sessions: make(map[int64]*models.Session),
		resolved: make(map[int64]bool),
		inflight: make(map[int64]*refreshCall),
	}
}

// Resolve returns the user's session, restoring it from the keyring on
// first access. A nil session with nil error means logged out. Corrupt
// persisted state resolves to logged out and wipes the keys (fail-safe).
func (s *Store) Resolve(ctx context.Context, userID int64) (*models.Session, error) {
	s.mu.Lock()
	if s.resolved[userID] {
		sess := s.sessions[userID]
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.restore(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have resolved meanwhile; its result wins.
	if s.resolved[userID] {
		return s.sessions[userID], nil
	}
	s.resolved[userID] = true
	if sess != nil {
		s.sessions[userID] = sess
	}
	return sess, nil
}

// IsResolved reports whether the user's session has finished restoring.
// Guards render the loading state until this flips.
func (s *Store) IsResolved(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved[userID]
}

// IsAuthenticated resolves and checks the session invariant.
func (s *Store) IsAuthenticated(ctx context.Context, userID int64) bool {
	sess, err := s.Resolve(ctx, userID)
	return err == nil && sess.Authenticated()
}

// Login authenticates against the backend. On failure local state is left
// untouched; on success all three keyring entries are written and a login
// event is published.
func (s *Store) Login(ctx context.Context, userID int64, email, password string) (*models.Session, error) {
	sess, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, userID, sess); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to persist session")
	}

	s.mu.Lock()
	s.sessions[userID] = sess
	s.resolved[userID] = true
	s.mu.Unlock()

	s.publish(events.EventSessionLogin, userID, sess)
	return sess, nil
}

// Logout calls the backend best-effort and clears local state
// unconditionally. A network failure never leaves the user half logged in.
func (s *Store) Logout(ctx context.Context, userID int64) {
	s.mu.Lock()
	sess := s.sessions[userID]
	s.mu.Unlock()

	if sess != nil && sess.RefreshToken != "" {
		if err := s.auth.Logout(ctx, userID, sess.RefreshToken); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("server-side logout failed, clearing local session anyway")
		}
	}

	s.clear(ctx, userID)
	s.publish(events.EventSessionLogout, userID, sess)
}

// AccessToken implements domain.TokenSource.
func (s *Store) AccessToken(ctx context.Context, userID int64) string {
	sess, err := s.Resolve(ctx, userID)
	if err != nil || sess == nil {
		return ""
	}
	return sess.AccessToken
}

// Refresh implements domain.TokenSource. Concurrent callers for the same
// user share a single backend round-trip; latecomers block until it
// resolves and reuse its result.
func (s *Store) Refresh(ctx context.Context, userID int64) (string, error) {
	s.mu.Lock()
	if call, ok := s.inflight[userID]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	s.inflight[userID] = call
	sess := s.sessions[userID]
	s.mu.Unlock()

	call.token, call.err = s.doRefresh(ctx, userID, sess)

	s.mu.Lock()
	delete(s.inflight, userID)
	s.mu.Unlock()
	close(call.done)

	return call.token, call.err
}

func (s *Store) doRefresh(ctx context.Context, userID int64, sess *models.Session) (string, error) {
	if sess == nil || sess.RefreshToken == "" {
		return "", ErrNoSession
	}

	access, err := s.auth.RefreshAccessToken(ctx, sess.RefreshToken)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if current := s.sessions[userID]; current != nil {
		current.AccessToken = access
	}
	s.mu.Unlock()

	if err := s.keyring.Set(ctx, userID, models.KeyAccessToken, access); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to persist refreshed token")
	}

	s.logger.Debug().Int64("user_id", userID).Msg("access token refreshed")
	return access, nil
}

func (s *Store) restore(ctx context.Context, userID int64) (*models.Session, error) {
	access, err := s.keyring.Get(ctx, userID, models.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := s.keyring.Get(ctx, userID, models.KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	userData, err := s.keyring.Get(ctx, userID, models.KeyUserData)
	if err != nil {
		return nil, err
	}

	if access == "" && refresh == "" && userData == "" {
		return nil, nil
	}

	var data models.UserData
	if access == "" || userData == "" || json.Unmarshal([]byte(userData), &data) != nil || data.Email == "" {
		// Partial or corrupt state: resolve to logged out, wipe the keys.
		s.logger.Warn().Int64("user_id", userID).Msg("corrupt persisted session, wiping")
		s.wipe(ctx, userID)
		return nil, nil
	}

	return &models.Session{
		UserEmail:    data.Email,
		FullName:     data.FullName,
		Role:         data.Role,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Store) persist(ctx context.Context, userID int64, sess *models.Session) error {
	data, err := json.Marshal(models.UserData{
		Email:    sess.UserEmail,
		FullName: sess.FullName,
		Role:     sess.Role,
	})
	if err != nil {
		return err
	}

	if err := s.keyring.Set(ctx, userID, models.KeyAccessToken, sess.AccessToken); err != nil {
		return err
	}
	if err := s.keyring.Set(ctx, userID, models.KeyRefreshToken, sess.RefreshToken); err != nil {
		return err
	}
	return s.keyring.Set(ctx, userID, models.KeyUserData, string(data))
}

func (s *Store) clear(ctx context.Context, userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.resolved[userID] = true
	s.mu.Unlock()

	s.wipe(ctx, userID)
}

func (s *Store) wipe(ctx context.Context, userID int64) {
	err := s.keyring.Delete(ctx, userID, models.KeyAccessToken, models.KeyRefreshToken, models.KeyUserData)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to wipe persisted session")
	}
}

func (s *Store) publish(eventType string, userID int64, sess *models.Session) {
	if s.eventBus == nil {
		return
	}

	payload := events.SessionEventPayload{UserID: userID}
	if sess != nil {
		payload.Email = sess.UserEmail
		payload.Role = sess.Role
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish session event error")
	}
}
