package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"spacehub/internal/bot"
	"spacehub/internal/client"
	"spacehub/internal/collection"
	"spacehub/internal/config"
	"spacehub/internal/database"
	"spacehub/internal/domain"
	"spacehub/internal/events"
	"spacehub/internal/export"
	"spacehub/internal/google"
	"spacehub/internal/guard"
	"spacehub/internal/logging"
	"spacehub/internal/metrics"
	"spacehub/internal/models"
	"spacehub/internal/notify"
	"spacehub/internal/repository"
	"spacehub/internal/service"
	"spacehub/internal/session"
	"spacehub/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	keyring, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer keyring.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateService := initStateService(ctx, cfg, &logger)

	m := metrics.New()
	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, &logger)
	}

	apiClient := client.New(cfg.Backend, &logger, m)
	if redisClient != nil && cfg.Backend.CacheTTL > 0 {
		apiClient.UseRedisCache(redisClient, time.Duration(cfg.Backend.CacheTTL)*time.Second)
	}

	eventBus := events.NewEventBus()

	authService := service.NewAuthService(apiClient, &logger)
	bookingService := service.NewBookingService(apiClient, eventBus, &logger)
	spaceService := service.NewSpaceService(apiClient, &logger)

	sessions := session.NewStore(keyring, authService, eventBus, &logger)
	apiClient.SetTokenSource(sessions)

	bookingStore := collection.NewBookingStore(bookingService, eventBus, &logger)
	spaceStore := collection.NewSpaceStore(spaceService, &logger)
	routeGuard := guard.New(sessions, &logger)

	// Зеркало в Google Sheets опционально: без него бот работает полностью.
	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, &logger); sheetsService != nil {
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker := worker.NewSheetsWorker(sheetsService, bookingService.All, redisClient, retryPolicy, &logger)
		sheetsWorker.BindEvents(eventBus)
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	exporter := export.New(cfg.Exports.Path, &logger)

	return startBot(ctx, cfg, stateService, sessions, authService, routeGuard,
		bookingStore, spaceStore, exporter, syncWorker, eventBus, m, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	ttl := time.Duration(models.DefaultRedisTTL) * time.Second
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	if redisClient == nil {
		return nil, service.NewStateService(fallbackRepo, logger)
	}

	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewStateService(stateRepo, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		logger.Warn().Msg("Google Sheets not configured, spreadsheet mirroring disabled")
		return nil
	}

	sheetsSvc, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("Google Sheets connection test failed")
		return nil
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server error")
	}
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	stateService *service.StateService,
	sessions *session.Store,
	authService *service.AuthService,
	routeGuard *guard.Guard,
	bookingStore *collection.BookingStore,
	spaceStore *collection.SpaceStore,
	exporter *export.Exporter,
	syncWorker domain.SyncWorker,
	eventBus *events.EventBus,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	botWrapper := bot.NewBotWrapper(botAPI)
	notifier := notify.New(botWrapper, eventBus, m, logger)

	telegramBot, err := bot.NewBot(
		botWrapper, cfg, stateService, sessions, authService,
		routeGuard, bookingStore, spaceStore, notifier, exporter,
		syncWorker, eventBus, m, logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}
