package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"food-ordering-api/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RateStore counts hits per key in fixed windows.
type RateStore interface {
	// Incr adds a hit to key and returns the count in the current window
	// and when that window ends.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type RateClass struct {
	Name   string
	Limit  int64
	Window time.Duration
}

var (
	RateAuth     = RateClass{"auth", 10, 15 * time.Minute}
	RateStandard = RateClass{"standard", 100, time.Minute}
	RateRead     = RateClass{"read", 300, time.Minute}
	RateWrite    = RateClass{"write", 30, time.Minute}
	RateUpload   = RateClass{"upload", 20, time.Hour}
)

// RateLimit rejects callers exceeding class.Limit hits per window. Callers
// are identified by a hash of their bearer token, else by client IP. Store
// failures let the request through.
func RateLimit(store RateStore, class RateClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rl:" + class.Name + ":" + rateIdentity(c)
		count, resetAt, err := store.Incr(c.Request.Context(), key, class.Window)
		if err != nil {
			log.Warn().Err(err).Str("class", class.Name).Msg("rate limit store unavailable")
			c.Next()
			return
		}

		remaining := class.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(class.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > class.Limit {
			retryAfter := int64(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			rateLimitedTotal.WithLabelValues(class.Name).Inc()
			abort(c, apperr.RateLimited(fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter)).
				WithDetails(gin.H{"retryAfter": retryAfter}))
			return
		}
		c.Next()
	}
}

func rateIdentity(c *gin.Context) string {
	if tok := bearerToken(c); tok != "" {
		sum := sha256.Sum256([]byte(tok))
		return "tok:" + hex.EncodeToString(sum[:])[:16]
	}
	return "ip:" + c.ClientIP()
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process. Expired windows are replaced
// lazily on the next hit and swept once the map grows past sweepAt.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
	sweepAt int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now, sweepAt: 10000}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.entries) >= s.sweepAt {
		for k, e := range s.entries {
			if !now.Before(e.resetAt) {
				delete(s.entries, k)
			}
		}
	}

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &memoryEntry{resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt, nil
}

var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares counters between instances.
type RedisStore struct {
	client redis.Scripter
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := incrScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("rate limit incr %s: unexpected reply %v", key, res)
	}
	count, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)
	return count, time.Now().Add(time.Duration(ttl) * time.Millisecond), nil
}
