package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds throttle budgets. A non-positive maximum disables that
// throttle.
type Config struct {
	Prefix           string
	MaxLoginFailures int
	LoginWindow      time.Duration
	MaxCodeRequests  int
	CodeWindow       time.Duration
}

// Limiter enforces per-identifier budgets for failed logins and code
// issuance using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	logger *zap.Logger
}

// New creates a [Limiter] backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config, logger *zap.Logger) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gi"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		redis:  client,
		config: cfg,
		logger: logger.Named("rate"),
	}
}

// CheckLogin reports ErrRateLimited when identifier has already spent its
// failed-login budget for the current window.
func (l *Limiter) CheckLogin(ctx context.Context, identifier string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	count, err := l.counter(ctx, l.loginKey(identifier))
	if err != nil {
		l.failOpen("check_login", err)
		return nil
	}
	if count > int64(l.config.MaxLoginFailures) {
		return ErrRateLimited
	}
	return nil
}

// RecordLoginFailure counts one failed login. It returns ErrRateLimited when
// this failure exhausted the budget.
func (l *Limiter) RecordLoginFailure(ctx context.Context, identifier string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.loginKey(identifier), l.config.LoginWindow)
	if err != nil {
		l.failOpen("record_login_failure", err)
		return nil
	}
	if count > int64(l.config.MaxLoginFailures) {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the failed-login counter after a successful login or a
// password reset.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) {
	if err := l.redis.Del(ctx, l.loginKey(identifier)).Err(); err != nil {
		l.failOpen("reset_login", fmt.Errorf("%w: %v", ErrRedisUnavailable, err))
	}
}

// LoginFailures returns the failures counted in the current window. Missing
// keys count as zero.
func (l *Limiter) LoginFailures(ctx context.Context, identifier string) (int, error) {
	count, err := l.counter(ctx, l.loginKey(identifier))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CheckCodeIssue counts one code request for purpose and identifier and
// reports ErrRateLimited once the window's budget is exceeded.
func (l *Limiter) CheckCodeIssue(ctx context.Context, purpose, identifier string) error {
	if l.config.MaxCodeRequests <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.codeKey(purpose, identifier), l.config.CodeWindow)
	if err != nil {
		l.failOpen("check_code_issue", err)
		return nil
	}
	if count > int64(l.config.MaxCodeRequests) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) loginKey(identifier string) string {
	return l.config.Prefix + ":rl:login:" + identifier
}

func (l *Limiter) codeKey(purpose, identifier string) string {
	return l.config.Prefix + ":rl:code:" + purpose + ":" + identifier
}

func (l *Limiter) failOpen(op string, err error) {
	l.logger.Warn("rate limiter unavailable, allowing request",
		zap.String("op", op),
		zap.Error(err),
	)
}

func (l *Limiter) counter(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the first hit opens the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
