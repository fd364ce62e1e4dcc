package redis

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or server error.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces keys when no prefix is given.
const DefaultPrefix = "gi"

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func normalizePrefix(p string) string {
	if p == "" {
		return DefaultPrefix
	}
	return p
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// keyTTL keeps a record around for retention after it stops being usable, so
// late presentations are still recognised.
func keyTTL(expiresAt, now time.Time, retention time.Duration) time.Duration {
	ttl := expiresAt.Sub(now) + retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
