package collection

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"spacehub/internal/client"
	"spacehub/internal/domain"
	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

// autoFetchTimeout bounds the background fetch triggered by a login event.
const autoFetchTimeout = 30 * time.Second

// BookingSnapshot is the uniform view the UI renders from.
type BookingSnapshot struct {
	MyEvents []models.Booking
	Upcoming []models.Booking
	Pending  []models.Booking
	Loading  bool
	Error    string
}

type bookingState struct {
	myEvents []models.Booking
	upcoming []models.Booking
	pending  []models.Booking
	loading  bool
	errMsg   string
}

// BookingStore binds the remote booking collections to local render state,
// one state bucket per user. Every successful mutation triggers a full
// re-fetch of the affected list; the store never patches items in place.
type BookingStore struct {
	svc    domain.BookingService
	logger *zerolog.Logger

	mu    sync.Mutex
	users map[int64]*bookingState
}

func NewBookingStore(svc domain.BookingService, bus *events.EventBus, logger *zerolog.Logger) *BookingStore {
	s := &BookingStore{
		svc:    svc,
		logger: logger,
		users:  make(map[int64]*bookingState),
	}

	if bus != nil {
		// Collections follow the session: fill on login, drop on logout.
		bus.Subscribe(events.EventSessionLogin, func(ev *events.Event) error {
			var payload events.SessionEventPayload
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				return nil
			}
			go s.autoFetch(payload.UserID)
			return nil
		})
		bus.Subscribe(events.EventSessionLogout, func(ev *events.Event) error {
			var payload events.SessionEventPayload
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				return nil
			}
			s.Clear(payload.UserID)
			return nil
		})
	}

	return s
}

func (s *BookingStore) autoFetch(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), autoFetchTimeout)
	defer cancel()

	if _, err := s.FetchMyEvents(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("auto-fetch my events failed")
	}
	if _, err := s.FetchUpcoming(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("auto-fetch upcoming failed")
	}
}

func (s *BookingStore) state(userID int64) *bookingState {
	if st, ok := s.users[userID]; ok {
		return st
	}
	st := &bookingState{}
	s.users[userID] = st
	return st
}

// begin marks the start of an operation: loading on, previous error gone.
func (s *BookingStore) begin(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(userID)
	st.loading = true
	st.errMsg = ""
}

// finish always clears loading; the error is recorded only on failure.
func (s *BookingStore) finish(userID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(userID)
	st.loading = false
	if err != nil {
		st.errMsg = errorMessage(err)
	}
}

func (s *BookingStore) FetchMyEvents(ctx context.Context, userID int64) ([]models.Booking, error) {
	s.begin(userID)
	bookings, err := s.svc.MyEvents(ctx, userID)
	if err == nil {
		s.mu.Lock()
		s.state(userID).myEvents = bookings
		s.mu.Unlock()
	}
	s.finish(userID, err)
	return bookings, err
}

func (s *BookingStore) FetchUpcoming(ctx context.Context, userID int64) ([]models.Booking, error) {
	s.begin(userID)
	bookings, err := s.svc.Upcoming(ctx, userID)
	if err == nil {
		s.mu.Lock()
		s.state(userID).upcoming = bookings
		s.mu.Unlock()
	}
	s.finish(userID, err)
	return bookings, err
}

func (s *BookingStore) FetchPending(ctx context.Context, userID int64) ([]models.Booking, error) {
	s.begin(userID)
	bookings, err := s.svc.Pending(ctx, userID)
	if err == nil {
		s.mu.Lock()
		s.state(userID).pending = bookings
		s.mu.Unlock()
	}
	s.finish(userID, err)
	return bookings, err
}

// Create submits a booking and, on success, re-fetches the user's events so
// the local copy reflects whatever the backend decided.
func (s *BookingStore) Create(ctx context.Context, userID int64, form *models.BookingForm) (*models.Booking, error) {
	s.begin(userID)
	booking, err := s.svc.Book(ctx, userID, form)
	s.finish(userID, err)
	if err != nil {
		return nil, err
	}

	if _, ferr := s.FetchMyEvents(ctx, userID); ferr != nil {
		s.logger.Warn().Err(ferr).Int64("user_id", userID).Msg("re-fetch after create failed")
	}
	return booking, nil
}

func (s *BookingStore) Cancel(ctx context.Context, userID, bookingID int64) error {
	s.begin(userID)
	err := s.svc.Cancel(ctx, userID, bookingID)
	s.finish(userID, err)
	if err != nil {
		return err
	}

	if _, ferr := s.FetchMyEvents(ctx, userID); ferr != nil {
		s.logger.Warn().Err(ferr).Int64("user_id", userID).Msg("re-fetch after cancel failed")
	}
	return nil
}

func (s *BookingStore) Approve(ctx context.Context, userID, bookingID int64) error {
	return s.decide(ctx, userID, bookingID, s.svc.Approve)
}

func (s *BookingStore) Reject(ctx context.Context, userID, bookingID int64) error {
	return s.decide(ctx, userID, bookingID, s.svc.Reject)
}

func (s *BookingStore) decide(ctx context.Context, userID, bookingID int64, op func(context.Context, int64, int64) error) error {
	s.begin(userID)
	err := op(ctx, userID, bookingID)
	s.finish(userID, err)
	if err != nil {
		return err
	}

	if _, ferr := s.FetchPending(ctx, userID); ferr != nil {
		s.logger.Warn().Err(ferr).Int64("user_id", userID).Msg("re-fetch after decision failed")
	}
	return nil
}

// Clear drops everything cached for the user.
func (s *BookingStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// Snapshot returns a copy of the user's render state.
func (s *BookingStore) Snapshot(userID int64) BookingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		return BookingSnapshot{}
	}
	return BookingSnapshot{
		MyEvents: append([]models.Booking(nil), st.myEvents...),
		Upcoming: append([]models.Booking(nil), st.upcoming...),
		Pending:  append([]models.Booking(nil), st.pending...),
		Loading:  st.loading,
		Error:    st.errMsg,
	}
}

// errorMessage normalizes any operation error for display: validation
// messages pass through, API errors use the extraction priority, anything
// else collapses to the generic fallback.
func errorMessage(err error) string {
	var fieldErrs models.FieldErrors
	if errors.As(err, &fieldErrs) {
		names := make([]string, 0, len(fieldErrs))
		for name := range fieldErrs {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			return fieldErrs[names[0]]
		}
	}
	return client.Humanize(err)
}
