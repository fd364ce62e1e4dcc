package goIdentity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/delivery"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/linking"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/store/memory"
	storeredis "github.com/MrEthical07/goIdentity/store/redis"
	"github.com/MrEthical07/goIdentity/user"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Every With method is optional except
// signing keys in the config; missing stores fall back to Redis when a
// client is given and to in-memory stores otherwise.
type Builder struct {
	config Config
	logger *zap.Logger
	redis  redis.UniversalClient

	users        user.Store
	refreshStore refresh.Store
	codeStore    code.Store
	linkStore    linking.StateStore
	sender       delivery.Sender
	hasher       password.Hasher
	auditSink    AuditSink
	tracer       trace.Tracer
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRedis enables the rate limiters and, for any store not set
// explicitly, the Redis refresh, code and linking-state stores.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(s user.Store) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithRefreshStore(s refresh.Store) *Builder {
	b.refreshStore = s
	return b
}

func (b *Builder) WithCodeStore(s code.Store) *Builder {
	b.codeStore = s
	return b
}

func (b *Builder) WithLinkingStore(s linking.StateStore) *Builder {
	b.linkStore = s
	return b
}

// WithDelivery sets the collaborator that sends codes and confirmations.
// Without one, messages are only logged (codes are never logged).
func (b *Builder) WithDelivery(s delivery.Sender) *Builder {
	b.sender = s
	return b
}

// WithHasher overrides the hasher selected by Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets where audit events go. Audit must also be enabled in
// the config; the default sink logs through the engine's logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	if tp != nil {
		b.tracer = tp.Tracer(tracerName)
	}
	return b
}

// WithClock replaces time.Now for token, code and linking expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can
// only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.JWT.resolveKeys(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("identity")
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		tracer:  b.tracer,
		now:     now,
	}

	// -------- STORES --------
	users := b.users
	if users == nil {
		users = memory.NewUserStore()
	}
	refreshStore, codeStore, linkStore := b.refreshStore, b.codeStore, b.linkStore
	if b.redis != nil {
		prefix, retention := cfg.Store.RedisPrefix, cfg.Store.RedisRetention
		if refreshStore == nil {
			refreshStore = storeredis.NewRefreshStore(b.redis, prefix, retention)
		}
		if codeStore == nil {
			codeStore = storeredis.NewCodeStore(b.redis, prefix, retention)
		}
		if linkStore == nil {
			linkStore = storeredis.NewLinkingStateStore(b.redis, prefix)
		}
	}
	if refreshStore == nil {
		refreshStore = memory.NewRefreshStore()
	}
	if codeStore == nil {
		codeStore = memory.NewCodeStore()
	}
	if linkStore == nil {
		linkStore = memory.NewLinkingStateStore(cfg.Linking.StateTTL, cfg.Linking.StateTTL)
	}
	engine.users = users

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		h, err := newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	engine.hasher = hasher

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	engine.jwtManager = jm

	re, err := refresh.NewEngine(refreshStore, cfg.Refresh, refresh.WithClock(now), refresh.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	engine.refresh = re

	// -------- CODES --------
	ce, err := code.NewEngine(codeStore, code.WithClock(now), code.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("code: %w", err)
	}
	engine.codes = ce

	// -------- LINKING --------
	rec, err := linking.NewReconciler(users, linkStore, hasher, cfg.Linking.StateTTL, linking.WithClock(now), linking.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("linking: %w", err)
	}
	engine.linker = rec

	// -------- DELIVERY --------
	sender := b.sender
	if sender == nil {
		sender = delivery.NewLogSender(logger)
	}
	engine.sender = sender

	// -------- RATE LIMITS --------
	if b.redis != nil && cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.RateLimit.Prefix,
			MaxLoginFailures: cfg.RateLimit.MaxLoginFailures,
			LoginWindow:      cfg.RateLimit.LoginWindow,
			MaxCodeRequests:  cfg.RateLimit.MaxCodeRequests,
			CodeWindow:       cfg.RateLimit.CodeWindow,
		}, logger)
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NewZapSink(logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	engine.flows = engine.buildFlows()

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	argon, err := password.NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, fmt.Errorf("argon2: %w", err)
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	if cfg.Algorithm == "bcrypt" {
		return password.NewChain(bc, argon), nil
	}
	return password.NewChain(argon, bc), nil
}
