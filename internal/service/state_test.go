package service

import (
	"context"
	"io"
	"testing"
	"time"

	"spacehub/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateServiceRoundTrip(t *testing.T) {
	logger := zerolog.New(io.Discard)
	svc := NewStateService(repository.NewMemoryStateRepository(time.Hour), &logger)
	ctx := context.Background()

	require.NoError(t, svc.SetUserState(ctx, 7, "booking_event_name", map[string]interface{}{"space_id": int64(3)}))

	state, err := svc.GetUserState(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "booking_event_name", state.CurrentStep)
	assert.EqualValues(t, 3, state.GetInt64("space_id"))

	require.NoError(t, svc.ClearUserState(ctx, 7))

	state, err = svc.GetUserState(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateServiceRateLimit(t *testing.T) {
	logger := zerolog.New(io.Discard)
	svc := NewStateService(repository.NewMemoryStateRepository(time.Hour), &logger)
	ctx := context.Background()

	allowed, err := svc.CheckRateLimit(ctx, 7, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	_, _ = svc.CheckRateLimit(ctx, 7, 2, time.Minute)

	allowed, err = svc.CheckRateLimit(ctx, 7, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}
