package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	TokenRefreshes     prometheus.Counter
	LoginsTotal        *prometheus.CounterVec
	UpdatesProcessed   prometheus.Counter
	ErrorsTotal        prometheus.Counter
	ToastsShown        *prometheus.CounterVec
}

// New создает и регистрирует метрики. Повторные вызовы возвращают тот же
// экземпляр: promauto регистрирует коллекторы глобально.
func New() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		APIRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spacehub_api_requests_total",
			Help: "Backend API requests by endpoint and status.",
		}, []string{"endpoint", "status"}),

		APIRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spacehub_api_request_duration_seconds",
			Help:    "Backend API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spacehub_token_refreshes_total",
			Help: "Access token refreshes triggered by 401 responses.",
		}),

		LoginsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spacehub_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),

		UpdatesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spacehub_bot_updates_total",
			Help: "Telegram updates processed.",
		}),

		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spacehub_errors_total",
			Help: "Errors surfaced to users.",
		}),

		ToastsShown: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spacehub_toasts_shown_total",
			Help: "Toasts shown by type.",
		}, []string{"type"}),
	}
}
