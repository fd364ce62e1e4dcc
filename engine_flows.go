package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/credential"
	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/user"
)

// buildFlows wires every flow once. The closures capture the engine, so
// the returned service must not outlive it.
func (e *Engine) buildFlows() internalflows.Service {
	cfg := e.config
	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	policy := internalflows.PasswordPolicy{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
	}

	session := internalflows.SessionDeps{
		AccessTTL: e.jwtManager.AccessTTL(),
		RevokeAll: e.refresh.RevokeAll,
		IssueRefresh: func(ctx context.Context, userID string) (string, error) {
			issued, err := e.refresh.Issue(ctx, userID)
			if err != nil {
				return "", err
			}
			return issued.Token, nil
		},
		RevokeIssued:   e.revokeToken,
		CreateAccess:   e.jwtManager.CreateAccess,
		MetricInc:      metricInc,
		SessionCreated: int(MetricSessionCreated),
	}
	issueSession := func(ctx context.Context, userID string, revokePrior bool) (internalflows.Tokens, error) {
		return internalflows.RunIssueSession(ctx, userID, revokePrior, session)
	}

	verificationCodes := e.codeDeps(cfg.Verification.CodeLength, cfg.Verification.CodeTTL, cfg.Verification.MaxAttempts)
	resetCodes := e.codeDeps(cfg.PasswordReset.CodeLength, cfg.PasswordReset.CodeTTL, cfg.PasswordReset.MaxAttempts)

	verification := internalflows.VerificationDeps{
		Codes:        verificationCodes,
		FindUserByID: e.users.FindByID,
		FindUser:     e.users.FindByIdentifier,
		MarkVerified: e.markVerified,
		MetricInc:    metricInc,
		EmitAudit:    e.emitAudit,
		Logger:       e.logger.Named("verification"),
		Metrics: internalflows.VerificationMetrics{
			CodeMetrics: codeMetrics(),
			Requested:   int(MetricVerificationRequested),
			Confirmed:   int(MetricVerificationConfirmed),
			Failure:     int(MetricVerificationFailure),
		},
		Events: internalflows.VerificationEvents{
			Sent:      AuditEventVerificationSent,
			Confirmed: AuditEventVerificationConfirmed,
			Failure:   AuditEventVerificationFailure,
		},
		Errors: internalflows.VerificationErrors{
			EngineNotReady:           ErrEngineNotReady,
			IdentifierNotSpecified:   ErrIdentifierNotSpecified,
			UserNotFound:             ErrUserNotFound,
			InvalidCode:              ErrInvalidCode,
			CodeExpiredOrMaxAttempts: ErrCodeExpiredOrMaxAttempts,
			CodeRateLimited:          ErrCodeRateLimited,
			IdentifierNotSet:         identifierNotSet,
			AlreadyVerified:          alreadyVerified,
		},
	}

	register := internalflows.RegisterDeps{
		Policy:       policy,
		HashPassword: e.hasher.Hash,
		CreateUser:   e.users.Create,
		MetricInc:    metricInc,
		EmitAudit:    e.emitAudit,
		Logger:       e.logger.Named("register"),
		Metrics: internalflows.RegisterMetrics{
			Success:   int(MetricRegisterSuccess),
			Duplicate: int(MetricRegisterDuplicate),
		},
		Events: internalflows.RegisterEvents{
			Success:   AuditEventRegisterSuccess,
			Duplicate: AuditEventRegisterDuplicate,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady:         ErrEngineNotReady,
			IdentifierNotSpecified: ErrIdentifierNotSpecified,
			InvalidIdentifier:      ErrInvalidIdentifier,
			PasswordsDoNotMatch:    ErrPasswordsDoNotMatch,
			PasswordPolicy:         ErrPasswordPolicy,
			AlreadyRegistered:      alreadyRegistered,
		},
	}
	if cfg.Verification.SendOnRegister {
		register.SendVerification = func(ctx context.Context, u user.User, kind credential.Kind) error {
			return internalflows.RunSendVerificationForUser(ctx, u, kind, verification)
		}
	}

	login := internalflows.LoginDeps{
		RequireVerified:        cfg.Verification.RequireVerifiedLogin,
		RevokeOnLogin:          cfg.Session.RevokeOnLogin,
		PasswordUpgradeOnLogin: cfg.Password.UpgradeOnLogin,
		FindUser:               e.users.FindByIdentifier,
		VerifyPassword:         e.hasher.Verify,
		HashPassword:           e.hasher.Hash,
		UpdatePasswordHash:     e.users.UpdatePasswordHash,
		IssueSession:           issueSession,
		MetricInc:              metricInc,
		EmitAudit:              e.emitAudit,
		Logger:                 e.logger.Named("login"),
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     AuditEventLoginSuccess,
			LoginFailure:     AuditEventLoginFailure,
			LoginRateLimited: AuditEventLoginRateLimited,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:         ErrEngineNotReady,
			IdentifierNotSpecified: ErrIdentifierNotSpecified,
			LoginRateLimited:       ErrLoginRateLimited,
			PasswordNotSet:         ErrPasswordNotSet,
			InvalidCredentials:     invalidCredentials,
			NotVerified:            notVerified,
		},
	}
	if u, ok := e.hasher.(password.Upgrader); ok {
		login.PasswordNeedsUpgrade = u.NeedsUpgrade
	}
	if e.limiter != nil {
		login.CheckLoginRate = func(ctx context.Context, id credential.Identifier) error {
			return e.limiter.CheckLogin(ctx, id.String())
		}
		login.RecordLoginFailure = func(ctx context.Context, id credential.Identifier) error {
			return e.limiter.RecordLoginFailure(ctx, id.String())
		}
		login.ResetLoginRate = e.resetLoginRate
	}

	refreshDeps := internalflows.RefreshDeps{
		AccessTTL:    e.jwtManager.AccessTTL(),
		Rotate:       e.refresh.Rotate,
		RevokeIssued: e.revokeToken,
		FindUserByID: e.users.FindByID,
		CreateAccess: e.jwtManager.CreateAccess,
		MetricInc:    metricInc,
		EmitAudit:    e.emitAudit,
		Logger:       e.logger.Named("refresh"),
		Metrics: internalflows.RefreshMetrics{
			RefreshSuccess:       int(MetricRefreshSuccess),
			RefreshFailure:       int(MetricRefreshFailure),
			RefreshReuseDetected: int(MetricRefreshReuseDetected),
		},
		Events: internalflows.RefreshEvents{
			RefreshSuccess:       AuditEventRefreshSuccess,
			RefreshInvalid:       AuditEventRefreshInvalid,
			RefreshReuseDetected: AuditEventRefreshReuseDetected,
		},
		Errors: internalflows.RefreshErrors{
			EngineNotReady: ErrEngineNotReady,
			TokenNotFound:  ErrRefreshTokenNotFound,
			TokenInvalid:   ErrInvalidRefreshToken,
			UserNotFound:   ErrUserNotFound,
		},
	}

	logout := internalflows.LogoutDeps{
		Revoke:    e.refresh.Revoke,
		RevokeAll: e.refresh.RevokeAll,
		MetricInc: metricInc,
		EmitAudit: e.emitAudit,
		Metrics: internalflows.LogoutMetrics{
			Logout:    int(MetricLogout),
			LogoutAll: int(MetricLogoutAll),
		},
		Events: internalflows.LogoutEvents{
			Logout:    AuditEventLogout,
			LogoutAll: AuditEventLogoutAll,
		},
		Errors: internalflows.LogoutErrors{
			EngineNotReady: ErrEngineNotReady,
			TokenNotFound:  ErrRefreshTokenNotFound,
		},
	}

	reset := internalflows.PasswordResetDeps{
		Codes:              resetCodes,
		Policy:             policy,
		FindUser:           e.users.FindByIdentifier,
		HashPassword:       e.hasher.Hash,
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		RevokeAll:          e.refresh.RevokeAll,
		MetricInc:          metricInc,
		EmitAudit:          e.emitAudit,
		Logger:             e.logger.Named("password_reset"),
		Metrics: internalflows.PasswordResetMetrics{
			CodeMetrics:    codeMetrics(),
			Requested:      int(MetricPasswordResetRequested),
			ConfirmSuccess: int(MetricPasswordResetSuccess),
			ConfirmFailure: int(MetricPasswordResetFailure),
		},
		Events: internalflows.PasswordResetEvents{
			Requested: AuditEventPasswordResetRequested,
			Completed: AuditEventPasswordResetCompleted,
			Failure:   AuditEventPasswordResetFailure,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:           ErrEngineNotReady,
			IdentifierNotSpecified:   ErrIdentifierNotSpecified,
			UserNotFound:             ErrUserNotFound,
			PasswordsDoNotMatch:      ErrPasswordsDoNotMatch,
			PasswordPolicy:           ErrPasswordPolicy,
			InvalidCode:              ErrInvalidCode,
			CodeExpiredOrMaxAttempts: ErrCodeExpiredOrMaxAttempts,
			CodeRateLimited:          ErrCodeRateLimited,
		},
	}
	if e.limiter != nil {
		reset.ResetLoginRate = e.resetLoginRate
	}

	link := internalflows.LinkDeps{
		AllowedKinds:  cfg.Linking.AllowedKinds,
		RevokeOnLogin: cfg.Session.RevokeOnLogin,
		Initiate:      e.linker.Initiate,
		Select:        e.linker.Select,
		Complete:      e.linker.VerifyAndComplete,
		Cancel:        e.linker.Cancel,
		IssueSession:  issueSession,
		MetricInc:     metricInc,
		EmitAudit:     e.emitAudit,
		Logger:        e.logger.Named("linking"),
		Metrics: internalflows.LinkMetrics{
			LinkInitiated:   int(MetricLinkInitiated),
			LinkCompleted:   int(MetricLinkCompleted),
			LinkConflict:    int(MetricLinkConflict),
			LinkFailure:     int(MetricLinkFailure),
			FederatedSignIn: int(MetricFederatedSignIn),
		},
		Events: internalflows.LinkEvents{
			LinkInitiated: AuditEventLinkInitiated,
			LinkCompleted: AuditEventLinkCompleted,
			LinkFailure:   AuditEventLinkFailure,
		},
		Errors: internalflows.LinkErrors{
			EngineNotReady: ErrEngineNotReady,
			BadRequest:     ErrLinkingBadRequest,
			Unauthorized:   ErrLinkingUnauthorized,
		},
	}

	return internalflows.New(internalflows.Deps{
		Session:       session,
		Register:      register,
		Login:         login,
		Refresh:       refreshDeps,
		Logout:        logout,
		Verification:  verification,
		PasswordReset: reset,
		Link:          link,
	})
}

func (e *Engine) codeDeps(length int, ttl time.Duration, maxAttempts int) internalflows.CodeDeps {
	deps := internalflows.CodeDeps{
		Length:      length,
		TTL:         ttl,
		MaxAttempts: maxAttempts,
		Issue:       e.codes.Issue,
		Verify:      e.codes.Verify,
		Deliver:     e.sender.Send,
	}
	if e.limiter != nil {
		deps.CheckIssueRate = func(ctx context.Context, t code.Target) error {
			err := e.limiter.CheckCodeIssue(ctx, t.Purpose.String(), t.Channel.String()+":"+t.IdentifierValue)
			if errors.Is(err, rate.ErrRateLimited) {
				return ErrCodeRateLimited
			}
			return err
		}
	}
	return deps
}

func codeMetrics() internalflows.CodeMetrics {
	return internalflows.CodeMetrics{
		CodeIssued:      int(MetricCodeIssued),
		CodeRateLimited: int(MetricCodeRateLimited),
		CodeRejected:    int(MetricCodeRejected),
		DeliveryFailure: int(MetricDeliveryFailure),
	}
}

func (e *Engine) markVerified(ctx context.Context, userID string, kind credential.Kind) error {
	switch kind {
	case credential.KindEmail:
		return e.users.MarkEmailVerified(ctx, userID)
	case credential.KindPhone:
		return e.users.MarkPhoneVerified(ctx, userID)
	}
	return ErrIdentifierNotSpecified
}

func (e *Engine) revokeToken(ctx context.Context, token string) error {
	_, err := e.refresh.Revoke(ctx, token)
	return err
}

func (e *Engine) resetLoginRate(ctx context.Context, id credential.Identifier) {
	if e.limiter == nil {
		return
	}
	e.limiter.ResetLogin(ctx, id.String())
}
