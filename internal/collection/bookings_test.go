package collection

import (
	"context"
	"io"
	"testing"
	"time"

	"spacehub/internal/client"
	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingSvc struct {
	mock.Mock
}

func (m *mockBookingSvc) MyEvents(ctx context.Context, userID int64) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingSvc) Upcoming(ctx context.Context, userID int64) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingSvc) Pending(ctx context.Context, userID int64) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingSvc) Book(ctx context.Context, userID int64, form *models.BookingForm) (*models.Booking, error) {
	args := m.Called(ctx, userID, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingSvc) Cancel(ctx context.Context, userID, bookingID int64) error {
	return m.Called(ctx, userID, bookingID).Error(0)
}

func (m *mockBookingSvc) Approve(ctx context.Context, userID, bookingID int64) error {
	return m.Called(ctx, userID, bookingID).Error(0)
}

func (m *mockBookingSvc) Reject(ctx context.Context, userID, bookingID int64) error {
	return m.Called(ctx, userID, bookingID).Error(0)
}

func newBookingStore(svc *mockBookingSvc, bus *events.EventBus) *BookingStore {
	logger := zerolog.New(io.Discard)
	return NewBookingStore(svc, bus, &logger)
}

func TestFetchMyEventsReplacesCollection(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	first := []models.Booking{{ID: 1, EventName: "Old"}}
	second := []models.Booking{{ID: 2, EventName: "New"}, {ID: 3, EventName: "Newer"}}
	svc.On("MyEvents", ctx, int64(7)).Return(first, nil).Once()
	svc.On("MyEvents", ctx, int64(7)).Return(second, nil).Once()

	_, err := store.FetchMyEvents(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, store.Snapshot(7).MyEvents, 1)

	_, err = store.FetchMyEvents(ctx, 7)
	require.NoError(t, err)

	snap := store.Snapshot(7)
	require.Len(t, snap.MyEvents, 2)
	assert.Equal(t, "New", snap.MyEvents[0].EventName)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
}

func TestFetchErrorPopulatesErrorAndClearsLoading(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	apiErr := &client.APIError{Status: 500, Detail: "server exploded"}
	svc.On("MyEvents", ctx, int64(7)).Return(nil, apiErr).Once()

	_, err := store.FetchMyEvents(ctx, 7)
	require.Error(t, err)

	snap := store.Snapshot(7)
	assert.False(t, snap.Loading)
	assert.Equal(t, "server exploded", snap.Error)
}

func TestErrorResetAtStartOfNextOperation(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	svc.On("MyEvents", ctx, int64(7)).Return(nil, assert.AnError).Once()
	svc.On("MyEvents", ctx, int64(7)).Return([]models.Booking{}, nil).Once()

	_, _ = store.FetchMyEvents(ctx, 7)
	assert.NotEmpty(t, store.Snapshot(7).Error)

	_, err := store.FetchMyEvents(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, store.Snapshot(7).Error)
}

func TestCreateTriggersFullRefetch(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	form := &models.BookingForm{
		EventName:      "Team Offsite",
		SpaceID:        3,
		Start:          time.Now().Add(24 * time.Hour),
		End:            time.Now().Add(26 * time.Hour),
		OrganizerName:  "Pat",
		OrganizerEmail: "pat@example.com",
		Attendance:     8,
	}
	created := &models.Booking{ID: 10, EventName: "Team Offsite", Status: models.StatusPending}

	svc.On("Book", ctx, int64(7), form).Return(created, nil).Once()
	svc.On("MyEvents", ctx, int64(7)).Return([]models.Booking{*created}, nil).Once()

	booking, err := store.Create(ctx, 7, form)
	require.NoError(t, err)
	assert.EqualValues(t, 10, booking.ID)

	snap := store.Snapshot(7)
	require.Len(t, snap.MyEvents, 1)
	svc.AssertExpectations(t)
}

func TestApproveRefetchesPending(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	svc.On("Approve", ctx, int64(1), int64(42)).Return(nil).Once()
	svc.On("Pending", ctx, int64(1)).Return([]models.Booking{}, nil).Once()

	require.NoError(t, store.Approve(ctx, 1, 42))
	svc.AssertExpectations(t)
}

func TestValidationErrorNeverReachesService(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	form := &models.BookingForm{EventName: "Bad"}
	fieldErrs := models.FieldErrors{"end_datetime": "End time must be after start time"}
	svc.On("Book", ctx, int64(7), form).Return(nil, fieldErrs).Once()

	_, err := store.Create(ctx, 7, form)
	require.Error(t, err)
	assert.Equal(t, "End time must be after start time", store.Snapshot(7).Error)
	// No re-fetch after a failed mutation.
	svc.AssertNotCalled(t, "MyEvents", mock.Anything, mock.Anything)
}

func TestAutoFetchOnLoginAndClearOnLogout(t *testing.T) {
	svc := new(mockBookingSvc)
	bus := events.NewEventBus()
	store := newBookingStore(svc, bus)

	bookings := []models.Booking{{ID: 1, EventName: "Standup"}}
	svc.On("MyEvents", mock.Anything, int64(7)).Return(bookings, nil)
	svc.On("Upcoming", mock.Anything, int64(7)).Return([]models.Booking{}, nil)

	require.NoError(t, bus.PublishJSON(events.EventSessionLogin, events.SessionEventPayload{UserID: 7}))

	require.Eventually(t, func() bool {
		return len(store.Snapshot(7).MyEvents) == 1
	}, 2*time.Second, 10*time.Millisecond, "login event must trigger a fetch")

	require.NoError(t, bus.PublishJSON(events.EventSessionLogout, events.SessionEventPayload{UserID: 7}))
	assert.Empty(t, store.Snapshot(7).MyEvents, "logout event must clear the collection")
}

func TestSnapshotsAreIsolatedPerUser(t *testing.T) {
	svc := new(mockBookingSvc)
	store := newBookingStore(svc, nil)
	ctx := context.Background()

	svc.On("MyEvents", ctx, int64(1)).Return([]models.Booking{{ID: 1}}, nil).Once()

	_, err := store.FetchMyEvents(ctx, 1)
	require.NoError(t, err)

	assert.Len(t, store.Snapshot(1).MyEvents, 1)
	assert.Empty(t, store.Snapshot(2).MyEvents)
}
