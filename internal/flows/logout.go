package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/refresh"
)

type LogoutMetrics struct {
	Logout    int
	LogoutAll int
}

type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

type LogoutErrors struct {
	EngineNotReady error
	TokenNotFound  error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Revoke    func(ctx context.Context, token string) (refresh.Record, error)
	RevokeAll func(ctx context.Context, userID string) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout revokes the presented refresh token. Logging out twice with the
// same token succeeds.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = nopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = nopAudit
	}
	if deps.Revoke == nil {
		return deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(token) == "" {
		return deps.Errors.TokenNotFound
	}

	rec, err := deps.Revoke(ctx, token)
	if errors.Is(err, refresh.ErrTokenNotFound) {
		return deps.Errors.TokenNotFound
	}
	if err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, rec.UserID, nil, nil)
	return nil
}

// RunLogoutAll revokes every refresh token of userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = nopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = nopAudit
	}
	if deps.RevokeAll == nil {
		return deps.Errors.EngineNotReady
	}
	if err := deps.RevokeAll(ctx, userID); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, userID, nil, nil)
	return nil
}
