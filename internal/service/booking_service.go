package service

import (
	"context"
	"fmt"
	"time"

	"spacehub/internal/client"
	"spacehub/internal/domain"
	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	client   *client.Client
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(c *client.Client, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		client:   c,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *BookingService) MyEvents(ctx context.Context, userID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := s.client.Get(ctx, userID, "/bookings/my-events/", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingService) Upcoming(ctx context.Context, userID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := s.client.Get(ctx, userID, "/bookings/upcoming/", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingService) Pending(ctx context.Context, userID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := s.client.Get(ctx, userID, "/bookings/?status=pending", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// All returns the backend's full booking listing. The spreadsheet mirror
// feeds from this, so no user token is attached.
func (s *BookingService) All(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := s.client.Get(ctx, 0, "/bookings/", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Book submits a booking request. Local validation runs first so an invalid
// form never reaches the network.
func (s *BookingService) Book(ctx context.Context, userID int64, form *models.BookingForm) (*models.Booking, error) {
	if errs := form.Validate(nil, s.now()); errs != nil {
		return nil, errs
	}

	var booking models.Booking
	if err := s.client.Post(ctx, userID, "/bookings/book/", form, &booking); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCreated, &booking, userID, "user")
	return &booking, nil
}

func (s *BookingService) Cancel(ctx context.Context, userID, bookingID int64) error {
	return s.updateStatus(ctx, userID, bookingID, models.StatusCancelled, "user", "")
}

func (s *BookingService) Approve(ctx context.Context, userID, bookingID int64) error {
	return s.updateStatus(ctx, userID, bookingID, models.StatusConfirmed, "admin", events.EventBookingApproved)
}

func (s *BookingService) Reject(ctx context.Context, userID, bookingID int64) error {
	return s.updateStatus(ctx, userID, bookingID, models.StatusRejected, "admin", events.EventBookingRejected)
}

func (s *BookingService) updateStatus(ctx context.Context, userID, bookingID int64, status, changedBy, eventType string) error {
	path := fmt.Sprintf("/bookings/%d/", bookingID)
	body := map[string]string{"status": status}

	var booking models.Booking
	if err := s.client.Patch(ctx, userID, path, body, &booking); err != nil {
		return err
	}

	if eventType != "" {
		booking.ID = bookingID
		booking.Status = status
		s.publishEvent(eventType, &booking, userID, changedBy)
	}
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, userID int64, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		UserID:    userID,
		SpaceID:   booking.SpaceID,
		EventName: booking.EventName,
		Status:    booking.Status,
		Start:     booking.Start,
		ChangedBy: changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
