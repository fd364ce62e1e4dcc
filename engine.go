package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/delivery"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/linking"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine is the identity core. Build one with [New] and share it; every
// method is safe for concurrent use.
type Engine struct {
	config     Config
	logger     *zap.Logger
	users      user.Store
	hasher     password.Hasher
	jwtManager *jwt.Manager
	refresh    *refresh.Engine
	codes      *code.Engine
	linker     *linking.Reconciler
	sender     delivery.Sender
	limiter    *rate.Limiter
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	tracer     trace.Tracer
	now        func() time.Time
	flows      internalflows.Service
}

// Close stops the audit dispatcher after draining queued events. Stores and
// delivery collaborators passed to the builder are owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events dropped because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Users exposes the user store the engine was built with.
func (e *Engine) Users() user.Store {
	return e.users
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// ValidateAccessToken verifies an access token's signature and registered
// claims. It performs no store lookups, so a revoked session's access token
// stays valid until it expires.
func (e *Engine) ValidateAccessToken(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	_, span := e.startSpan(ctx, "ValidateAccessToken")

	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		e.logger.Debug("access token rejected", zap.Error(err))
		endSpan(span, ErrInvalidAccessToken)
		return nil, ErrInvalidAccessToken
	}

	res := &AuthResult{
		UserID: claims.UserID(),
		Scope:  claims.Scope,
	}
	if claims.IssuedAt != nil {
		res.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	span.SetAttributes(attribute.String("identity.user_id", res.UserID))
	endSpan(span, nil)
	return res, nil
}
