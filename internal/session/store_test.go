package session

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeKeyring struct {
	mu   sync.Mutex
	data map[int64]map[string]string
}

func newFakeKeyring() *fakeKeyring {
	return &fakeKeyring{data: make(map[int64]map[string]string)}
}

func (k *fakeKeyring) Get(_ context.Context, userID int64, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.data[userID][key], nil
}

func (k *fakeKeyring) Set(_ context.Context, userID int64, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.data[userID] == nil {
		k.data[userID] = make(map[string]string)
	}
	k.data[userID][key] = value
	return nil
}

func (k *fakeKeyring) Delete(_ context.Context, userID int64, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.data[userID], key)
	}
	return nil
}

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuth) Register(ctx context.Context, email, fullName, password string) error {
	return m.Called(ctx, email, fullName, password).Error(0)
}

func (m *mockAuth) Logout(ctx context.Context, userID int64, refreshToken string) error {
	return m.Called(ctx, userID, refreshToken).Error(0)
}

func (m *mockAuth) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *mockAuth) VerifyEmail(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuth) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuth) ConfirmPasswordReset(ctx context.Context, uidb64, token string) error {
	return m.Called(ctx, uidb64, token).Error(0)
}

func (m *mockAuth) SetNewPassword(ctx context.Context, uidb64, token, password string) error {
	return m.Called(ctx, uidb64, token, password).Error(0)
}

func newTestStore(auth *mockAuth) (*Store, *fakeKeyring, *events.EventBus) {
	keyring := newFakeKeyring()
	bus := events.NewEventBus()
	logger := zerolog.New(io.Discard)
	return NewStore(keyring, auth, bus, &logger), keyring, bus
}

func testSession() *models.Session {
	return &models.Session{
		UserEmail:    "user@example.com",
		FullName:     "Test User",
		Role:         models.RoleUser,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
}

func TestLoginSuccessPersistsThreeKeys(t *testing.T) {
	auth := new(mockAuth)
	store, keyring, bus := newTestStore(auth)
	ctx := context.Background()

	var loginEvents int
	bus.Subscribe(events.EventSessionLogin, func(*events.Event) error { loginEvents++; return nil })

	auth.On("Login", ctx, "user@example.com", "secret").Return(testSession(), nil).Once()

	sess, err := store.Login(ctx, 7, "user@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())

	access, _ := keyring.Get(ctx, 7, models.KeyAccessToken)
	refresh, _ := keyring.Get(ctx, 7, models.KeyRefreshToken)
	userData, _ := keyring.Get(ctx, 7, models.KeyUserData)
	assert.Equal(t, "access-1", access)
	assert.Equal(t, "refresh-1", refresh)

	var data models.UserData
	require.NoError(t, json.Unmarshal([]byte(userData), &data))
	assert.Equal(t, "user@example.com", data.Email)
	assert.Equal(t, "Test User", data.FullName)

	assert.Equal(t, 1, loginEvents)
	auth.AssertExpectations(t)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	auth := new(mockAuth)
	store, keyring, _ := newTestStore(auth)
	ctx := context.Background()

	auth.On("Login", ctx, "user@example.com", "wrong").Return(nil, assert.AnError).Once()

	_, err := store.Login(ctx, 7, "user@example.com", "wrong")
	require.Error(t, err)

	assert.False(t, store.IsAuthenticated(ctx, 7))
	for _, key := range []string{models.KeyAccessToken, models.KeyRefreshToken, models.KeyUserData} {
		val, _ := keyring.Get(ctx, 7, key)
		assert.Empty(t, val)
	}
}

func TestLogoutClearsStateEvenWhenServerFails(t *testing.T) {
	auth := new(mockAuth)
	store, keyring, bus := newTestStore(auth)
	ctx := context.Background()

	var logoutEvents int
	bus.Subscribe(events.EventSessionLogout, func(*events.Event) error { logoutEvents++; return nil })

	auth.On("Login", ctx, "user@example.com", "secret").Return(testSession(), nil).Once()
	auth.On("Logout", ctx, int64(7), "refresh-1").Return(assert.AnError).Once()

	_, err := store.Login(ctx, 7, "user@example.com", "secret")
	require.NoError(t, err)

	store.Logout(ctx, 7)

	assert.False(t, store.IsAuthenticated(ctx, 7))
	for _, key := range []string{models.KeyAccessToken, models.KeyRefreshToken, models.KeyUserData} {
		val, _ := keyring.Get(ctx, 7, key)
		assert.Empty(t, val, "key %s must be wiped", key)
	}
	assert.Equal(t, 1, logoutEvents)
	auth.AssertExpectations(t)
}

func TestRestoreRoundTrip(t *testing.T) {
	auth := new(mockAuth)
	store, keyring, _ := newTestStore(auth)
	ctx := context.Background()

	auth.On("Login", ctx, "user@example.com", "secret").Return(testSession(), nil).Once()
	_, err := store.Login(ctx, 7, "user@example.com", "secret")
	require.NoError(t, err)

	// Fresh store over the same keyring simulates a process restart.
	logger := zerolog.New(io.Discard)
	reloaded := NewStore(keyring, auth, nil, &logger)

	assert.False(t, reloaded.IsResolved(7))
	sess, err := reloaded.Resolve(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, reloaded.IsResolved(7))
	assert.Equal(t, "user@example.com", sess.UserEmail)
	assert.Equal(t, "Test User", sess.FullName)
	assert.Equal(t, "access-1", sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken)
}

func TestRestoreCorruptUserDataWipesKeys(t *testing.T) {
	auth := new(mockAuth)
	store, keyring, _ := newTestStore(auth)
	ctx := context.Background()

	keyring.Set(ctx, 7, models.KeyAccessToken, "access-1")
	keyring.Set(ctx, 7, models.KeyRefreshToken, "refresh-1")
	keyring.Set(ctx, 7, models.KeyUserData, "{not json")

	sess, err := store.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, sess, "corrupt session must resolve to logged out")

	for _, key := range []string{models.KeyAccessToken, models.KeyRefreshToken, models.KeyUserData} {
		val, _ := keyring.Get(ctx, 7, key)
		assert.Empty(t, val, "key %s must be wiped", key)
	}
}

func TestRestorePartialStateWipesKeys(t *testing.T) {
	auth := new(mockAuth)
	store, keyring, _ := newTestStore(auth)
	ctx := context.Background()

	// Token without user data is not a valid session.
	keyring.Set(ctx, 7, models.KeyAccessToken, "access-1")

	sess, err := store.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, sess)

	val, _ := keyring.Get(ctx, 7, models.KeyAccessToken)
	assert.Empty(t, val)
}

func TestRefreshSingleFlight(t *testing.T) {
	auth := new(mockAuth)
	store, _, _ := newTestStore(auth)
	ctx := context.Background()

	auth.On("Login", ctx, "user@example.com", "secret").Return(testSession(), nil).Once()
	_, err := store.Login(ctx, 7, "user@example.com", "secret")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	auth.On("RefreshAccessToken", mock.Anything, "refresh-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return("access-2", nil).Once()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Refresh(ctx, 7)
		}(i)
	}

	<-started
	// Give the remaining callers time to join the in-flight call before the
	// leader is released.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-2", results[i])
	}

	// Exactly one backend call for all concurrent refreshers.
	auth.AssertNumberOfCalls(t, "RefreshAccessToken", 1)

	assert.Equal(t, "access-2", store.AccessToken(ctx, 7))
}

func TestRefreshWithoutSession(t *testing.T) {
	auth := new(mockAuth)
	store, _, _ := newTestStore(auth)

	_, err := store.Refresh(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoSession)
}
