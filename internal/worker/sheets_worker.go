package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spacehub/internal/domain"
	"spacehub/internal/events"
	"spacehub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpdateStatus = "update_status"
	TaskFullSync     = "full_sync"
)

// FetchBookings supplies the complete booking list for a full mirror pass.
type FetchBookings func(ctx context.Context) ([]models.Booking, error)

// SheetsWorker mirrors booking changes into the spreadsheet asynchronously.
// Tasks go through Redis when it is available so they survive a restart;
// otherwise an in-memory queue carries them.
type SheetsWorker struct {
	sheets      domain.SheetsWriter
	fetch       FetchBookings
	redis       *redis.Client
	retryPolicy RetryPolicy
	logger      *zerolog.Logger

	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
}

func NewSheetsWorker(sheets domain.SheetsWriter, fetch FetchBookings, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &SheetsWorker{
		sheets:        sheets,
		fetch:         fetch,
		redis:         redisClient,
		retryPolicy:   retry,
		logger:        logger,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollInterval:  2 * time.Second,
	}
}

// BindEvents subscribes the worker to booking events: creations trigger a
// full mirror pass, decisions update a single status cell.
func (w *SheetsWorker) BindEvents(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, func(ev *events.Event) error {
		return w.EnqueueFullSync(context.Background())
	})

	decision := func(ev *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		return w.EnqueueTask(context.Background(), TaskUpdateStatus, payload.BookingID, payload.Status)
	}
	bus.Subscribe(events.EventBookingApproved, decision)
	bus.Subscribe(events.EventBookingRejected, decision)
}

// EnqueueTask schedules a mirror task via Redis or the in-memory queue.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, bookingID int64, status string) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if taskType == TaskUpdateStatus && bookingID == 0 {
		return errors.New("booking id is required")
	}

	task := models.SyncTask{
		TaskType:  taskType,
		BookingID: bookingID,
		Status:    status,
		CreatedAt: time.Now(),
	}

	w.enqueue(ctx, task)
	return nil
}

// EnqueueFullSync schedules a complete rewrite of the bookings sheet.
func (w *SheetsWorker) EnqueueFullSync(ctx context.Context) error {
	return w.EnqueueTask(ctx, TaskFullSync, 0, "")
}

func (w *SheetsWorker) enqueue(ctx context.Context, task models.SyncTask) {
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("sheets worker: redis push failed, falling back to memory queue")
		} else {
			return
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Error().Str("task_type", task.TaskType).Msg("sheets worker: queue full, task dropped")
	}
}

// Start launches the main loop; it stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if task, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, task)
			continue
		}

		if task, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case task := <-w.queue:
		return task, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}

	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn().Err(err).Msg("sheets worker: redis BRPOP error")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}

	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Warn().Err(err).Msg("sheets worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task models.SyncTask) {
	if err := w.handleTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	w.logger.Debug().Str("task_type", task.TaskType).Int64("booking_id", task.BookingID).Msg("sheets task completed")
}

func (w *SheetsWorker) handleTask(ctx context.Context, task models.SyncTask) error {
	switch task.TaskType {
	case TaskFullSync:
		bookings, err := w.fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch bookings: %w", err)
		}
		return w.sheets.ReplaceBookingsSheet(ctx, bookings)
	case TaskUpdateStatus:
		if task.Status == "" {
			return errors.New("status missing")
		}
		return w.sheets.UpdateBookingStatus(ctx, task.BookingID, task.Status)
	default:
		return fmt.Errorf("unknown task type: %s", task.TaskType)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Str("task_type", task.TaskType).Int64("booking_id", task.BookingID).
			Msg("sheets task failed permanently")
		w.pushDeadLetter(ctx, task)
		return
	}

	task.RetryCount = attempt
	delay := w.retryPolicy.NextDelay(attempt)
	w.logger.Warn().Err(cause).Int("attempt", attempt).Dur("delay", delay).Msg("sheets task retry scheduled")

	time.AfterFunc(delay, func() {
		select {
		case w.queue <- task:
		default:
			w.logger.Error().Str("task_type", task.TaskType).Msg("sheets worker: queue full, retry dropped")
		}
	})
}

func (w *SheetsWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Msg("sheets worker: deadletter push failed")
	}
}
