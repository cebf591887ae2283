package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"spacehub/internal/client"
	"spacehub/internal/config"
	"spacehub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceCRUDPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)

	var gotMethod, gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			_ = json.NewEncoder(w).Encode(models.Space{ID: 3, Name: "Loft"})
		}
	}))
	svc := NewSpaceService(c, &logger)
	ctx := context.Background()

	space, err := svc.Get(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "Loft", space.Name)
	assert.Equal(t, "/spaces/3/", gotPath)

	_, err = svc.Create(ctx, 1, &models.Space{Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/spaces/", gotPath)

	_, err = svc.Update(ctx, 1, 3, map[string]interface{}{"capacity": 50})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/spaces/3/", gotPath)

	require.NoError(t, svc.Delete(ctx, 1, 3))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestListServedFromCacheUntilMutation(t *testing.T) {
	logger := zerolog.New(io.Discard)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/spaces/" && r.Method == http.MethodGet {
			hits.Add(1)
			_ = json.NewEncoder(w).Encode([]models.Space{{ID: 1, Name: "Loft"}})
			return
		}
		_ = json.NewEncoder(w).Encode(models.Space{ID: 2, Name: "Hall"})
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	c := client.New(config.BackendConfig{BaseURL: srv.URL, TimeoutSeconds: 5}, &logger, nil)
	c.UseRedisCache(redisClient, 5*time.Minute)
	svc := NewSpaceService(c, &logger)
	ctx := context.Background()

	_, err := svc.List(ctx, 1)
	require.NoError(t, err)
	_, err = svc.List(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "second list must come from cache")

	// A mutation drops the cached list; the next read goes to the backend.
	_, err = svc.Create(ctx, 1, &models.Space{Name: "Hall"})
	require.NoError(t, err)

	_, err = svc.List(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}
