package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/config"
)

// captureWriter copies up to limit bytes of the response body while
// forwarding everything to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int64
	over   bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.over {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.over = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// cacheKey is "<prefix>:<sha1 of method/route/query per strategy>".
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", c.Path()}
	case "method_route":
		parts = []string{"method", r.Method, "route", c.Path()}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
	default: // route_query
		parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	hdr := http.Header{}
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}

// errCacheMiss is returned by responseStore.Get for absent keys.
var errCacheMiss = errors.New("cache miss")

// responseStore holds cached responses.  Every invalidation bumps a
// generation counter; a response is only stored if the generation it was
// rendered under is still current.
type responseStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Generation(ctx context.Context) (int64, error)
	SetIfGeneration(ctx context.Context, key string, payload []byte, ttl time.Duration, gen int64) (bool, error)
}

// generationKey sits outside the "<prefix>:*" pattern so invalidation never
// deletes it.
func generationKey(prefix string) string { return prefix + "-gen" }

var setIfGeneration = redis.NewScript(`
if tonumber(redis.call('GET', KEYS[2]) or '0') ~= tonumber(ARGV[3]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

type redisStore struct {
	rdb    *redis.Client
	genKey string
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	bs, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return bs, err
}

func (s *redisStore) Generation(ctx context.Context) (int64, error) {
	n, err := s.rdb.Get(ctx, s.genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *redisStore) SetIfGeneration(ctx context.Context, key string, payload []byte, ttl time.Duration, gen int64) (bool, error) {
	n, err := setIfGeneration.Run(ctx, s.rdb, []string{key, s.genKey}, payload, ttl.Milliseconds(), gen).Int()
	return n == 1, err
}

// NewRedisCache serves cached 200 responses for the configured methods and
// stores fresh ones for cfg.TTL.  Responses carry X-Cache: HIT or MISS.  It
// is a pass-through when disabled or when rdb is nil.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return newCache(cfg, &redisStore{rdb: rdb, genKey: generationKey(cfg.Prefix)}, log)
}

func newCache(cfg config.CacheConfig, store responseStore, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			bs, err := store.Get(ctx, key)
			switch {
			case err == nil:
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(status, c.Response().Header().Get(echo.HeaderContentType), body)
				}
			case !errors.Is(err, errCacheMiss):
				log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			// Read before rendering: a mutation that lands while the handler
			// runs bumps the generation and the write below is dropped.
			gen, err := store.Generation(ctx)
			if err != nil {
				log.Warn("cache generation read failed", zap.Error(err))
				return next(c)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.over {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			stored, err := store.SetIfGeneration(context.WithoutCancel(ctx), key, payload, ttl, gen)
			if err != nil {
				log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			} else if !stored {
				log.Debug("cache write skipped, venue changed", zap.String("key", key))
			}
			return nil
		}
	}
}

// RedisCacheInvalidator deletes every cached response under a key prefix.
type RedisCacheInvalidator struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCacheInvalidator returns nil when rdb is nil so callers can leave
// invalidation unset.
func NewRedisCacheInvalidator(rdb *redis.Client, prefix string) *RedisCacheInvalidator {
	if rdb == nil {
		return nil
	}
	return &RedisCacheInvalidator{rdb: rdb, prefix: prefix}
}

// Invalidate bumps the cache generation, so in-flight renders are not
// stored, then scans for "<prefix>:*" and deletes the matches in batches.
func (r *RedisCacheInvalidator) Invalidate(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.rdb.Incr(ctx, generationKey(r.prefix)).Err(); err != nil {
		return err
	}
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+":*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
