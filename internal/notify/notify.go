package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"spacehub/internal/events"
	"spacehub/internal/metrics"
	"spacehub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDuration is how long a toast stays on screen when the caller
// does not specify one.
const DefaultDuration = 5 * time.Second

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type pendingToast struct {
	chatID    int64
	messageID int
	timer     *time.Timer
}

// Notifier renders toasts as short-lived chat messages: shown once,
// deleted again when the duration elapses. Callers either invoke Show
// directly or publish a toast event on the bus; there is no global
// registry to mutate.
type Notifier struct {
	sender  sender
	logger  *zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*pendingToast
}

// ToastEventPayload is the bus payload for decoupled toast requests.
type ToastEventPayload struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func New(s sender, bus *events.EventBus, m *metrics.Metrics, logger *zerolog.Logger) *Notifier {
	n := &Notifier{
		sender:  s,
		logger:  logger,
		metrics: m,
		pending: make(map[string]*pendingToast),
	}

	if bus != nil {
		bus.Subscribe(events.EventToastRequested, func(ev *events.Event) error {
			var payload ToastEventPayload
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				return nil
			}
			n.Show(payload.UserID, payload.Message, payload.Type, DefaultDuration)
			return nil
		})
	}

	return n
}

// Show delivers a toast and schedules its removal. Returns the toast ID
// so the caller can dismiss it early.
func (n *Notifier) Show(userID int64, message, toastType string, duration time.Duration) string {
	if duration <= 0 {
		duration = DefaultDuration
	}

	toast := models.Toast{
		ID:       uuid.NewString(),
		Message:  message,
		Type:     toastType,
		Duration: duration,
	}

	msg := tgbotapi.NewMessage(userID, fmt.Sprintf("%s %s", icon(toastType), message))
	sent, err := n.sender.Send(msg)
	if err != nil {
		n.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to deliver toast")
		return toast.ID
	}

	if n.metrics != nil {
		n.metrics.ToastsShown.WithLabelValues(toastType).Inc()
	}

	n.mu.Lock()
	n.pending[toast.ID] = &pendingToast{
		chatID:    userID,
		messageID: sent.MessageID,
		timer: time.AfterFunc(duration, func() {
			n.Dismiss(userID, toast.ID)
		}),
	}
	n.mu.Unlock()

	return toast.ID
}

// Dismiss removes a toast before (or when) its timer fires. Dismissing
// an unknown or already-dismissed toast is a no-op.
func (n *Notifier) Dismiss(userID int64, toastID string) {
	n.mu.Lock()
	p, ok := n.pending[toastID]
	if ok {
		delete(n.pending, toastID)
	}
	n.mu.Unlock()

	if !ok {
		return
	}
	p.timer.Stop()

	if _, err := n.sender.Request(tgbotapi.NewDeleteMessage(p.chatID, p.messageID)); err != nil {
		n.logger.Debug().Err(err).Int64("user_id", userID).Msg("toast already gone")
	}
}

// Success, Error and Info are the common shapes with the default duration.
func (n *Notifier) Success(userID int64, message string) string {
	return n.Show(userID, message, models.ToastSuccess, DefaultDuration)
}

func (n *Notifier) Error(userID int64, message string) string {
	return n.Show(userID, message, models.ToastError, DefaultDuration)
}

func (n *Notifier) Info(userID int64, message string) string {
	return n.Show(userID, message, models.ToastInfo, DefaultDuration)
}

func icon(toastType string) string {
	switch toastType {
	case models.ToastSuccess:
		return "✅"
	case models.ToastError:
		return "❌"
	default:
		return "ℹ️"
	}
}
