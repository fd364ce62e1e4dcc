package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/refresh"
)

var errRefreshReuse = refresh.ErrReuseDetected

// AuditErrorCode is the stable, non-sensitive error label recorded on failed
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrNotVerified        AuditErrorCode = "not_verified"
	auditErrPasswordNotSet     AuditErrorCode = "password_not_set"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenNotFound      AuditErrorCode = "token_not_found"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrCodeRejected       AuditErrorCode = "code_expired_or_max_attempts"
	auditErrBadRequest         AuditErrorCode = "bad_request"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		UserID:    userID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrPasswordNotSet):
		return auditErrPasswordNotSet
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrCodeRateLimited):
		return auditErrRateLimited
	case errors.Is(err, errRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshTokenNotFound):
		return auditErrTokenNotFound
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidAccessToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAlreadyRegistered):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordsDoNotMatch):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrCodeExpiredOrMaxAttempts):
		return auditErrCodeRejected
	case errors.Is(err, ErrLinkingBadRequest):
		return auditErrBadRequest
	case errors.Is(err, ErrLinkingUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
