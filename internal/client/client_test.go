package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"spacehub/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	access       atomic.Value
	refreshCalls atomic.Int64
	refreshErr   error
}

func newStubTokens(access string) *stubTokens {
	s := &stubTokens{}
	s.access.Store(access)
	return s
}

func (s *stubTokens) AccessToken(_ context.Context, _ int64) string {
	return s.access.Load().(string)
}

func (s *stubTokens) Refresh(_ context.Context, _ int64) (string, error) {
	s.refreshCalls.Add(1)
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.access.Store("refreshed-token")
	return "refreshed-token", nil
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return New(config.BackendConfig{BaseURL: serverURL, TimeoutSeconds: 2}, &logger, nil)
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.SetTokenSource(newStubTokens("abc123"))

	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), 7, "/bookings/my-events/", &out))
	assert.Equal(t, "Bearer abc123", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.True(t, out["ok"])
}

func TestClientAnonymousRequestHasNoToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.SetTokenSource(newStubTokens("abc123"))

	require.NoError(t, c.Get(context.Background(), 0, "/spaces/", nil))
	assert.Empty(t, gotAuth)
}

func TestClientRefreshesOn401AndRetriesOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"token expired"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := newStubTokens("stale")
	c := newTestClient(t, srv.URL)
	c.SetTokenSource(tokens)

	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), 7, "/bookings/my-events/", &out))
	assert.True(t, out["ok"])
	assert.EqualValues(t, 1, tokens.refreshCalls.Load())
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientReturnsOriginalErrorWhenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token expired"}`))
	}))
	defer srv.Close()

	tokens := newStubTokens("stale")
	tokens.refreshErr = assert.AnError
	c := newTestClient(t, srv.URL)
	c.SetTokenSource(tokens)

	err := c.Get(context.Background(), 7, "/bookings/my-events/", nil)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "token expired", apiErr.Message())
}

func TestClientNo401RetryWithoutToken(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := newStubTokens("")
	c := newTestClient(t, srv.URL)
	c.SetTokenSource(tokens)

	err := c.Get(context.Background(), 7, "/bookings/my-events/", nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 0, tokens.refreshCalls.Load())
}

func TestClientErrorShaping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail wins", 400, `{"detail":"No active account found"}`, "No active account found"},
		{"first field first message", 400, `{"email":["Enter a valid email."],"password":["Too short."]}`, "Enter a valid email."},
		{"string field value", 400, `{"email":"Already taken"}`, "Already taken"},
		{"empty body falls back", 500, ``, GenericErrorMessage},
		{"garbage body falls back", 502, `<html>bad gateway</html>`, GenericErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			err := c.Post(context.Background(), 0, "/users/login/", map[string]string{}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.message, Humanize(err))
		})
	}
}

func TestHumanizeTransportError(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")
	err := c.Get(context.Background(), 0, "/spaces/", nil)
	require.Error(t, err)
	assert.Equal(t, GenericErrorMessage, Humanize(err))
}

func TestClientContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := c.Get(ctx, 0, "/spaces/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer redisClient.Close()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"id":1,"name":"Main Hall"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.UseRedisCache(redisClient, time.Minute)
	ctx := context.Background()

	var spaces []map[string]any
	require.NoError(t, c.GetCached(ctx, 0, "/spaces/", "spaces", &spaces))
	require.NoError(t, c.GetCached(ctx, 0, "/spaces/", "spaces", &spaces))
	assert.EqualValues(t, 1, calls.Load(), "second read must come from cache")
	assert.Len(t, spaces, 1)

	c.InvalidateCache(ctx, "spaces")
	require.NoError(t, c.GetCached(ctx, 0, "/spaces/", "spaces", &spaces))
	assert.EqualValues(t, 2, calls.Load(), "invalidation must force a re-fetch")
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/spaces/:id/", endpointLabel("/spaces/42/"))
	assert.Equal(t, "/spaces/", endpointLabel("/spaces/?page=2"))
	assert.Equal(t, "/bookings/my-events/", endpointLabel("/bookings/my-events/"))
}
