package domain

import (
	"context"
	"time"

	"spacehub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TokenSource hands out bearer tokens for outgoing requests and refreshes
// them when the backend rejects one. Refresh must be single-flight per user.
type TokenSource interface {
	AccessToken(ctx context.Context, userID int64) string
	Refresh(ctx context.Context, userID int64) (string, error)
}

// SessionKeyring is the durable per-user key/value store backing sessions.
// Keys are the three flat entries: access_token, refresh_token, user_data.
type SessionKeyring interface {
	Get(ctx context.Context, userID int64, key string) (string, error)
	Set(ctx context.Context, userID int64, key, value string) error
	Delete(ctx context.Context, userID int64, keys ...string) error
}

// StateRepository holds transient dialog state and rate-limit counters.
type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// StateManager is the service-level view over StateRepository.
type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// EventPublisher publishes in-process events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// AuthService drives the backend auth endpoints.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Register(ctx context.Context, email, fullName, password string) error
	Logout(ctx context.Context, userID int64, refreshToken string) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, uidb64, token string) error
	SetNewPassword(ctx context.Context, uidb64, token, password string) error
}

// BookingService drives the backend booking endpoints.
type BookingService interface {
	MyEvents(ctx context.Context, userID int64) ([]models.Booking, error)
	Upcoming(ctx context.Context, userID int64) ([]models.Booking, error)
	Pending(ctx context.Context, userID int64) ([]models.Booking, error)
	Book(ctx context.Context, userID int64, form *models.BookingForm) (*models.Booking, error)
	Cancel(ctx context.Context, userID, bookingID int64) error
	Approve(ctx context.Context, userID, bookingID int64) error
	Reject(ctx context.Context, userID, bookingID int64) error
}

// SpaceService drives the backend space endpoints.
type SpaceService interface {
	List(ctx context.Context, userID int64) ([]models.Space, error)
	Get(ctx context.Context, userID, spaceID int64) (*models.Space, error)
	Create(ctx context.Context, userID int64, space *models.Space) (*models.Space, error)
	Update(ctx context.Context, userID, spaceID int64, patch map[string]interface{}) (*models.Space, error)
	Delete(ctx context.Context, userID, spaceID int64) error
}

// Notifier delivers toasts to a user without the caller knowing the surface.
type Notifier interface {
	Show(userID int64, message, toastType string, duration time.Duration) string
	Dismiss(userID int64, toastID string)
}

// SheetsWriter mirrors booking snapshots to a spreadsheet.
type SheetsWriter interface {
	ReplaceBookingsSheet(ctx context.Context, bookings []models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

// SyncWorker accepts mirror tasks for asynchronous processing.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, status string) error
	EnqueueFullSync(ctx context.Context) error
}

// TelegramSender abstracts the bot API for testability.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
