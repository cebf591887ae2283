package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"spacehub/internal/config"
	"spacehub/internal/domain"
	"spacehub/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var numericSegment = regexp.MustCompile(`/\d+`)

// Client is the single HTTP boundary to the space-booking backend. It owns
// the base URL, timeout, JSON defaults, bearer-token attachment and
// request/response logging. On a 401 with a token attached it asks the
// token source for a refresh (single-flight there) and retries once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	tokens     domain.TokenSource

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client from backend config.
func New(cfg config.BackendConfig, logger *zerolog.Logger, m *metrics.Metrics) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		limiter:    limiter,
		metrics:    m,
	}
}

// SetTokenSource wires the session store in after construction; the store
// itself depends on this client for auth calls.
func (c *Client) SetTokenSource(ts domain.TokenSource) {
	c.tokens = ts
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) Get(ctx context.Context, userID int64, path string, out any) error {
	return c.do(ctx, userID, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, userID int64, path string, body, out any) error {
	return c.do(ctx, userID, http.MethodPost, path, body, out)
}

func (c *Client) Patch(ctx context.Context, userID int64, path string, body, out any) error {
	return c.do(ctx, userID, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, userID int64, path string) error {
	return c.do(ctx, userID, http.MethodDelete, path, nil, nil)
}

// GetCached serves the GET from Redis when possible and fills the cache on
// a miss. Falls through to a plain GET when no cache is configured.
func (c *Client) GetCached(ctx context.Context, userID int64, path, cacheKey string, out any) error {
	if c.readCache(ctx, cacheKey, out) {
		return nil
	}
	if err := c.Get(ctx, userID, path, out); err != nil {
		return err
	}
	c.writeCache(ctx, cacheKey, out)
	return nil
}

// InvalidateCache drops cache entries after mutations.
func (c *Client) InvalidateCache(ctx context.Context, keys ...string) {
	if c.redis == nil || len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func (c *Client) do(ctx context.Context, userID int64, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = data
	}

	var token string
	if c.tokens != nil && userID != 0 {
		token = c.tokens.AccessToken(ctx, userID)
	}

	respBody, status, err := c.roundTrip(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	// Expired access token: refresh once and retry the original request.
	// The token source serializes concurrent refreshes for the same user.
	if status == http.StatusUnauthorized && token != "" && c.tokens != nil {
		if c.metrics != nil {
			c.metrics.TokenRefreshes.Inc()
		}
		newToken, refreshErr := c.tokens.Refresh(ctx, userID)
		if refreshErr != nil {
			c.logger.Warn().Err(refreshErr).Int64("user_id", userID).Msg("token refresh failed")
			return parseAPIError(status, respBody)
		}
		respBody, status, err = c.roundTrip(ctx, method, path, payload, newToken)
		if err != nil {
			return err
		}
	}

	if status >= 300 {
		return parseAPIError(status, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, token string) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	endpoint := endpointLabel(path)

	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Dur("duration", duration).Msg("request failed")
		if c.metrics != nil {
			c.metrics.APIRequestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("request completed")

	if c.metrics != nil {
		c.metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		c.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}

	return respBody, resp.StatusCode, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// endpointLabel collapses numeric path segments so metric cardinality stays
// bounded.
func endpointLabel(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	return numericSegment.ReplaceAllString(path, "/:id")
}
