package models

// Booking statuses as reported by the backend.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Space statuses.
const (
	SpaceFree   = "free"
	SpaceBooked = "booked"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Toast types.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// Keyring entries persisted per user. These three keys are the whole of the
// durable session state.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"
)

const (
	// DefaultRedisTTL время жизни состояния диалога в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// SpacesCacheTTL время жизни кэша списка площадок
	SpacesCacheTTL = 5 * 60 // 5 минут в секундах

	// DefaultPaginationSize размер пагинации по умолчанию
	DefaultPaginationSize = 5

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// WorkerQueueSize размер очереди воркера синхронизации
	WorkerQueueSize = 1000
)
