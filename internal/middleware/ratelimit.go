package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/config"
)

// tokenBucket takes one token from the bucket at KEYS[1], crediting
// ARGV[2] tokens per ARGV[3] ms elapsed since the bucket's last credit and
// never holding more than ARGV[1].  Time comes from the Redis server so every
// API instance shares one clock.  Reply: {allowed, remaining, retry_ms}.
var tokenBucket = redis.NewScript(`
local cap, per, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local t = redis.call('TIME')
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local left = tonumber(redis.call('HGET', KEYS[1], 'left'))
local at = tonumber(redis.call('HGET', KEYS[1], 'at'))
if not left then
	left, at = cap, now
end

local steps = math.floor((now - at) / every)
if steps > 0 then
	left = math.min(cap, left + steps * per)
	at = at + steps * every
end

local ok, wait = 0, 0
if left >= 1 then
	ok, left = 1, left - 1
else
	wait = at + every - now
end

redis.call('HSET', KEYS[1], 'left', left, 'at', at)
redis.call('PEXPIRE', KEYS[1], ttl)
return {ok, left, wait}
`)

// bucketDecision is a decoded tokenBucket reply.
type bucketDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func decodeBucket(vals []int64) (bucketDecision, bool) {
	if len(vals) != 3 {
		return bucketDecision{}, false
	}
	retry := vals[2]
	if retry < 0 {
		retry = 0
	}
	return bucketDecision{Allowed: vals[0] == 1, Remaining: vals[1], RetryAfter: time.Duration(retry) * time.Millisecond}, true
}

// retryAfterSeconds rounds up, so clients never retry before a token exists.
func (d bucketDecision) retryAfterSeconds() int {
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// NewTokenBucket limits requests per key with a Redis token bucket.  It is
// a pass-through when disabled, when rdb is nil, or when a script call
// fails.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			vals, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), cfg.TTL.Milliseconds(),
			).Int64Slice()
			d, ok := decodeBucket(vals)
			if err != nil || !ok {
				log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.Allowed {
				return next(c)
			}
			secs := d.retryAfterSeconds()
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Debug("rate limited", zap.String("key", key), zap.Duration("retry_after", d.RetryAfter))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := identityKey(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
