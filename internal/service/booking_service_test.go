package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm(now time.Time) *models.BookingForm {
	return &models.BookingForm{
		EventName:      "Team Offsite",
		SpaceID:        3,
		Start:          now.Add(24 * time.Hour),
		End:            now.Add(26 * time.Hour),
		OrganizerName:  "Pat",
		OrganizerEmail: "pat@example.com",
		EventType:      "meeting",
		Attendance:     8,
	}
}

func TestMyEventsAndUpcoming(t *testing.T) {
	logger := zerolog.New(io.Discard)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bookings/my-events/":
			_ = json.NewEncoder(w).Encode([]models.Booking{{ID: 1, EventName: "Standup"}})
		case "/bookings/upcoming/":
			_ = json.NewEncoder(w).Encode([]models.Booking{{ID: 2}, {ID: 3}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	svc := NewBookingService(c, nil, &logger)
	ctx := context.Background()

	mine, err := svc.MyEvents(ctx, 7)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Standup", mine[0].EventName)

	upcoming, err := svc.Upcoming(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)
}

func TestPendingUsesStatusFilter(t *testing.T) {
	logger := zerolog.New(io.Discard)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bookings/", r.URL.Path)
		require.Equal(t, "pending", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode([]models.Booking{{ID: 5, Status: models.StatusPending}})
	}))
	svc := NewBookingService(c, nil, &logger)

	pending, err := svc.Pending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestBookValidatesBeforeNetwork(t *testing.T) {
	logger := zerolog.New(io.Discard)
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	svc := NewBookingService(c, nil, &logger)

	form := validForm(time.Now())
	form.End = form.Start.Add(-time.Hour)

	_, err := svc.Book(context.Background(), 7, form)
	require.Error(t, err)

	var fieldErrs models.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "End time must be after start time", fieldErrs["end_datetime"])
	assert.Zero(t, calls.Load(), "invalid form must never reach the network")
}

func TestBookPublishesCreatedEvent(t *testing.T) {
	logger := zerolog.New(io.Discard)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bookings/book/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.Booking{ID: 10, EventName: "Team Offsite", SpaceID: 3, Status: models.StatusPending})
	}))

	bus := events.NewEventBus()
	var got events.BookingEventPayload
	bus.Subscribe(events.EventBookingCreated, func(ev *events.Event) error {
		return json.Unmarshal(ev.Payload, &got)
	})

	svc := NewBookingService(c, bus, &logger)
	booking, err := svc.Book(context.Background(), 7, validForm(time.Now()))
	require.NoError(t, err)

	assert.EqualValues(t, 10, booking.ID)
	assert.EqualValues(t, 10, got.BookingID)
	assert.EqualValues(t, 7, got.UserID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "user", got.ChangedBy)
}

func TestApproveAndReject(t *testing.T) {
	logger := zerolog.New(io.Discard)

	var gotPath string
	var gotBody map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(models.Booking{ID: 42})
	}))

	bus := events.NewEventBus()
	var published []string
	bus.Subscribe(events.EventBookingApproved, func(ev *events.Event) error {
		published = append(published, ev.Type)
		return nil
	})
	bus.Subscribe(events.EventBookingRejected, func(ev *events.Event) error {
		published = append(published, ev.Type)
		return nil
	})

	svc := NewBookingService(c, bus, &logger)
	ctx := context.Background()

	require.NoError(t, svc.Approve(ctx, 1, 42))
	assert.Equal(t, "/bookings/42/", gotPath)
	assert.Equal(t, models.StatusConfirmed, gotBody["status"])

	require.NoError(t, svc.Reject(ctx, 1, 42))
	assert.Equal(t, models.StatusRejected, gotBody["status"])

	assert.Equal(t, []string{events.EventBookingApproved, events.EventBookingRejected}, published)
}

func TestCancelPublishesNothing(t *testing.T) {
	logger := zerolog.New(io.Discard)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.Booking{ID: 42})
	}))

	bus := events.NewEventBus()
	var fired atomic.Int32
	for _, eventType := range []string{events.EventBookingCreated, events.EventBookingApproved, events.EventBookingRejected} {
		bus.Subscribe(eventType, func(*events.Event) error {
			fired.Add(1)
			return nil
		})
	}

	svc := NewBookingService(c, bus, &logger)
	require.NoError(t, svc.Cancel(context.Background(), 7, 42))
	assert.Zero(t, fired.Load())
}
