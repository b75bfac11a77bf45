package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"billbook/internal/common"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter throttles requests per authenticated user, or per client IP before authentication.
type RateLimiter struct {
	limiter *limiter.Limiter
	log     zerolog.Logger
}

// NewRateLimiter keeps counters in redis. rate uses the "<limit>-<period>" format, e.g. "300-M".
func NewRateLimiter(client *redis.Client, rate string, logger zerolog.Logger) (*RateLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "billbook:ratelimit"})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return newRateLimiter(store, rate, logger)
}

func newRateLimiter(store limiter.Store, rate string, logger zerolog.Logger) (*RateLimiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	return &RateLimiter{limiter: limiter.New(store, r), log: logger}, nil
}

// Middleware answers 429 once the caller's budget for the period is spent.
// Store failures let the request through.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if userID, ok := common.GetUserIDFromContext(c.Request().Context()); ok {
				key = "user:" + userID.String()
			}

			result, err := rl.limiter.Get(c.Request().Context(), key)
			if err != nil {
				rl.log.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

			if result.Reached {
				retryAfter := result.Reset - time.Now().Unix()
				if retryAfter < 0 {
					retryAfter = 0
				}
				h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				return c.JSON(http.StatusTooManyRequests, common.CreateErrorResponse("RATE_LIMITED", "Too many requests", nil))
			}
			return next(c)
		}
	}
}
