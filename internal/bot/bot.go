package bot

import (
	"context"
	"os"
	"time"

	"spacehub/internal/collection"
	"spacehub/internal/config"
	"spacehub/internal/domain"
	"spacehub/internal/events"
	"spacehub/internal/export"
	"spacehub/internal/guard"
	"spacehub/internal/metrics"
	"spacehub/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Bot struct {
	tgService    domain.TelegramSender
	config       *config.Config
	stateService domain.StateManager
	sessions     *session.Store
	auth         domain.AuthService
	guard        *guard.Guard
	bookings     *collection.BookingStore
	spaces       *collection.SpaceStore
	notifier     domain.Notifier
	exporter     *export.Exporter
	sheetsWorker domain.SyncWorker
	eventBus     domain.EventPublisher
	metrics      *metrics.Metrics
	logger       *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramSender,
	cfg *config.Config,
	stateService domain.StateManager,
	sessions *session.Store,
	auth domain.AuthService,
	routeGuard *guard.Guard,
	bookings *collection.BookingStore,
	spaces *collection.SpaceStore,
	notifier domain.Notifier,
	exporter *export.Exporter,
	sheetsWorker domain.SyncWorker,
	eventBus domain.EventPublisher,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if eventBus == nil {
		eventBus = events.NewEventBus()
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tgService:    tgService,
		config:       cfg,
		stateService: stateService,
		sessions:     sessions,
		auth:         auth,
		guard:        routeGuard,
		bookings:     bookings,
		spaces:       spaces,
		notifier:     notifier,
		exporter:     exporter,
		sheetsWorker: sheetsWorker,
		eventBus:     eventBus,
		metrics:      m,
		logger:       logger,
	}, nil
}

// Шаги диалогов; хранятся в состоянии пользователя между сообщениями.
const (
	StateLoginEmail    = "login_email"
	StateLoginPassword = "login_password"

	StateRegisterEmail    = "register_email"
	StateRegisterName     = "register_name"
	StateRegisterPassword = "register_password"

	StateResetEmail = "reset_email"

	StateBookEventName     = "book_event_name"
	StateBookEventType     = "book_event_type"
	StateBookStart         = "book_start"
	StateBookEnd           = "book_end"
	StateBookOrganizerName = "book_organizer_name"
	StateBookOrganizerMail = "book_organizer_email"
	StateBookAttendance    = "book_attendance"
	StateBookConfirm       = "book_confirm"

	StateSpaceName      = "space_name"
	StateSpaceLocation  = "space_location"
	StateSpaceCapacity  = "space_capacity"
	StateSpacePrice     = "space_price"
	StateSpaceFeatures  = "space_features"
	StateSpaceEditPrice = "space_edit_price"
)

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	if b.metrics != nil {
		b.metrics.UpdatesProcessed.Inc()
	}

	// Каждое обновление обрабатывается со своим таймаутом
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var userID int64
		if update.Message != nil {
			userID = update.Message.From.ID
		} else if update.CallbackQuery != nil {
			userID = update.CallbackQuery.From.ID
		}

		if userID == 0 {
			return
		}

		allowed, err := b.stateService.CheckRateLimit(updateCtx, userID,
			b.config.Bot.RateLimitMessages, time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
		if err != nil {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		} else if !allowed {
			b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
			if update.Message != nil {
				b.sendMessage(update.Message.Chat.ID, "⚠️ You are sending messages too quickly. Please wait a moment.")
			}
			return
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update)
			return
		}

		if update.Message == nil {
			return
		}

		b.handleMessage(updateCtx, update)
	})
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tgService.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (b *Bot) sendMessageWithKeyboard(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.tgService.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}
