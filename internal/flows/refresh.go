package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
	"go.uber.org/zap"
)

type RefreshMetrics struct {
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
}

type RefreshEvents struct {
	RefreshSuccess       string
	RefreshInvalid       string
	RefreshReuseDetected string
}

type RefreshErrors struct {
	EngineNotReady error
	TokenNotFound  error
	TokenInvalid   error
	UserNotFound   error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	AccessTTL time.Duration

	Rotate       func(ctx context.Context, token string) (refresh.Issued, error)
	RevokeIssued func(ctx context.Context, token string) error
	FindUserByID func(ctx context.Context, id string) (user.User, error)
	CreateAccess func(userID, scope string) (string, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh rotates the presented refresh token and issues a new pair. The
// account is re-read so deleted users cannot keep refreshing; verification
// is not re-checked.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) (Tokens, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = nopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = nopAudit
	}
	deps.Logger = orNop(deps.Logger)
	if deps.Rotate == nil || deps.FindUserByID == nil || deps.CreateAccess == nil {
		return Tokens{}, deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(token) == "" {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return Tokens{}, deps.Errors.TokenNotFound
	}

	issued, err := deps.Rotate(ctx, token)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		switch {
		case errors.Is(err, refresh.ErrTokenNotFound):
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, "", deps.Errors.TokenNotFound, nil)
			return Tokens{}, deps.Errors.TokenNotFound
		case errors.Is(err, refresh.ErrReuseDetected):
			deps.MetricInc(deps.Metrics.RefreshReuseDetected)
			deps.EmitAudit(ctx, deps.Events.RefreshReuseDetected, false, "", err, nil)
			return Tokens{}, deps.Errors.TokenInvalid
		case errors.Is(err, refresh.ErrTokenInvalid):
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, "", deps.Errors.TokenInvalid, nil)
			return Tokens{}, deps.Errors.TokenInvalid
		}
		return Tokens{}, err
	}

	userID := issued.Record.UserID
	u, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		if deps.RevokeIssued != nil {
			if rerr := deps.RevokeIssued(ctx, issued.Token); rerr != nil {
				deps.Logger.Warn("rotated token not revoked", zap.String("user_id", userID), zap.Error(rerr))
			}
		}
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if errors.Is(err, user.ErrNotFound) {
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, userID, deps.Errors.UserNotFound, nil)
			return Tokens{}, deps.Errors.UserNotFound
		}
		return Tokens{}, fmt.Errorf("find user: %w", err)
	}

	access, err := deps.CreateAccess(u.ID(), "")
	if err != nil {
		return Tokens{}, fmt.Errorf("issue access token: %w", err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, u.ID(), nil, nil)
	return Tokens{
		AccessToken:  access,
		RefreshToken: issued.Token,
		ExpiresIn:    deps.AccessTTL,
		UserID:       u.ID(),
	}, nil
}
