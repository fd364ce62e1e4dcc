package goIdentity

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisEnv(t *testing.T, cfg Config) (*testEnv, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newTestEnv(t, cfg, func(b *Builder) { b.WithRedis(rdb) }), mr
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxLoginFailures = 3
	env, _ := newRedisEnv(t, cfg)
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", "wrong"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected the correct password to be throttled too, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 2 {
		t.Fatalf("expected 2 rate limited logins, got %d", got)
	}

	// Other identifiers keep their own budget.
	env.verifiedEmailUser(t, "bob@example.com")
	if _, err := env.engine.Login(ctx, KindEmail, "bob@example.com", testPassword); err != nil {
		t.Fatalf("expected bob to log in, got %v", err)
	}
}

func TestSuccessfulLoginResetsFailures(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxLoginFailures = 2
	env, mr := newRedisEnv(t, cfg)
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if mr.Exists("gi:rl:login:email:alice@example.com") {
		t.Fatal("expected the failure counter to be cleared")
	}
}

func TestCodeIssueRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxCodeRequests = 2
	env, _ := newRedisEnv(t, cfg)
	ctx := context.Background()

	id, _ := env.register(t, KindEmail, "alice@example.com")
	if err := env.engine.SendEmailVerification(ctx, id); err != nil {
		t.Fatalf("second code: %v", err)
	}
	if err := env.engine.SendEmailVerification(ctx, id); !errors.Is(err, ErrCodeRateLimited) {
		t.Fatalf("expected ErrCodeRateLimited, got %v", err)
	}

	// Password reset codes are budgeted separately.
	if err := env.engine.RequestPasswordReset(ctx, KindEmail, "alice@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricCodeRateLimited]; got != 1 {
		t.Fatalf("expected one rate limited code, got %d", got)
	}
}
