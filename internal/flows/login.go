package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/user"
	"go.uber.org/zap"
)

// LoginMetrics carries metric IDs needed by login flows.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
}

// LoginEvents carries audit event names used by login flows.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by login flows.
type LoginErrors struct {
	EngineNotReady         error
	IdentifierNotSpecified error
	LoginRateLimited       error
	PasswordNotSet         error
	InvalidCredentials     KindError
	NotVerified            KindError
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	RequireVerified        bool
	RevokeOnLogin          bool
	PasswordUpgradeOnLogin bool

	CheckLoginRate     func(ctx context.Context, id credential.Identifier) error
	RecordLoginFailure func(ctx context.Context, id credential.Identifier) error
	ResetLoginRate     func(ctx context.Context, id credential.Identifier)

	FindUser             func(ctx context.Context, id credential.Identifier) (user.User, error)
	VerifyPassword       func(plaintext, encoded string) (bool, error)
	PasswordNeedsUpgrade func(encoded string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(ctx context.Context, userID, hash string) error
	IssueSession         func(ctx context.Context, userID string, revokePrior bool) (Tokens, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates an identifier and password and issues a token
// pair. Unknown identifiers and wrong passwords fail with the same
// kind-specific InvalidCredentials error.
func RunLogin(ctx context.Context, kind credential.Kind, raw, password string, deps LoginDeps) (Tokens, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = nopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = nopAudit
	}
	deps.Logger = orNop(deps.Logger)
	if deps.FindUser == nil || deps.VerifyPassword == nil || deps.IssueSession == nil {
		return Tokens{}, deps.Errors.EngineNotReady
	}
	invalid := kindErr(deps.Errors.InvalidCredentials, kind, deps.Errors.EngineNotReady)

	id, err := credential.Parse(kind, raw)
	if errors.Is(err, credential.ErrIdentifierNotSpecified) {
		return Tokens{}, deps.Errors.IdentifierNotSpecified
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", invalid, func() map[string]string {
			return map[string]string{"kind": kind.String(), "reason": "malformed_identifier"}
		})
		return Tokens{}, invalid
	}

	rateLimited := func(userID string) (Tokens, error) {
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, userID, deps.Errors.LoginRateLimited, func() map[string]string {
			return map[string]string{"kind": kind.String()}
		})
		return Tokens{}, deps.Errors.LoginRateLimited
	}
	fail := func(userID, reason string) (Tokens, error) {
		if deps.RecordLoginFailure != nil {
			if err := deps.RecordLoginFailure(ctx, id); err != nil {
				return rateLimited(userID)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, invalid, func() map[string]string {
			return map[string]string{"kind": kind.String(), "reason": reason}
		})
		return Tokens{}, invalid
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, id); err != nil {
			return rateLimited("")
		}
	}

	u, err := deps.FindUser(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return fail("", "user_not_found")
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("find user: %w", err)
	}

	if !user.HasPassword(u) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, u.ID(), deps.Errors.PasswordNotSet, func() map[string]string {
			return map[string]string{"kind": kind.String(), "reason": "password_not_set"}
		})
		return Tokens{}, deps.Errors.PasswordNotSet
	}

	ok, err := deps.VerifyPassword(password, u.PasswordHash())
	if err != nil || !ok {
		return fail(u.ID(), "password_mismatch")
	}

	if deps.RequireVerified && !user.IsVerified(u, kind) {
		notVerified := kindErr(deps.Errors.NotVerified, kind, invalid)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, u.ID(), notVerified, func() map[string]string {
			return map[string]string{"kind": kind.String(), "reason": "not_verified"}
		})
		return Tokens{}, notVerified
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(u.PasswordHash()); err == nil && needsUpgrade {
			if upgraded, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, u.ID(), upgraded); err != nil {
					deps.Logger.Warn("password hash upgrade not stored", zap.String("user_id", u.ID()), zap.Error(err))
				}
			} else {
				deps.Logger.Warn("password hash upgrade failed", zap.String("user_id", u.ID()), zap.Error(err))
			}
		}
	}
	password = ""

	if deps.ResetLoginRate != nil {
		deps.ResetLoginRate(ctx, id)
	}

	tokens, err := deps.IssueSession(ctx, u.ID(), deps.RevokeOnLogin)
	if err != nil {
		return Tokens{}, err
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, u.ID(), nil, func() map[string]string {
		return map[string]string{"kind": kind.String()}
	})
	return tokens, nil
}
