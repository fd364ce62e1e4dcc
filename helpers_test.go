package goIdentity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/delivery"
	"github.com/MrEthical07/goIdentity/store/memory"
)

const testPassword = "correct-password-123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Algorithm = "bcrypt"
	cfg.Password.BcryptCost = 4
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine  *Engine
	users   *memory.UserStore
	refresh *memory.RefreshStore
	outbox  *delivery.Recorder
	clock   *testClock
}

func newTestEnv(t *testing.T, cfg Config, opts ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		users:   memory.NewUserStore(),
		refresh: memory.NewRefreshStore(),
		outbox:  delivery.NewRecorder(),
		clock:   newTestClock(),
	}
	b := New().
		WithConfig(cfg).
		WithUserStore(env.users).
		WithRefreshStore(env.refresh).
		WithDelivery(env.outbox).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// register creates an account and returns its id together with the code
// that was delivered to it, if any.
func (env *testEnv) register(t *testing.T, kind Kind, identifier string) (string, string) {
	t.Helper()
	u, err := env.engine.Register(context.Background(), RegisterRequest{
		Kind:            kind,
		Identifier:      identifier,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", identifier, err)
	}
	if kind == KindUsername {
		return u.ID(), ""
	}
	to := u.Email()
	if kind == KindPhone {
		to = u.Phone()
	}
	msg, ok := env.outbox.Last(to, delivery.KindVerificationCode)
	if !ok {
		return u.ID(), ""
	}
	return u.ID(), msg.Code
}

// verifiedEmailUser registers and verifies an email account.
func (env *testEnv) verifiedEmailUser(t *testing.T, email string) string {
	t.Helper()
	id, code := env.register(t, KindEmail, email)
	if code == "" {
		t.Fatalf("no verification code delivered to %s", email)
	}
	if err := env.engine.VerifyEmail(context.Background(), email, code); err != nil {
		t.Fatalf("verify %s failed: %v", email, err)
	}
	return id
}

func (env *testEnv) lastCode(t *testing.T, to string, kind delivery.Kind) string {
	t.Helper()
	msg, ok := env.outbox.Last(to, kind)
	if !ok {
		t.Fatalf("no %s message delivered to %s", kind, to)
	}
	return msg.Code
}

func wrongCode(c string) string {
	if c == "" || c[0] != '2' {
		return "2" + c[1:]
	}
	return "3" + c[1:]
}
