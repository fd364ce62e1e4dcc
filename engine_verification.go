package goIdentity

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// SendEmailVerification issues a verification code for the user's email and
// delivers it. Calling it again invalidates the previous code.
//
// It fails with ErrUserNotFound, ErrEmailNotSet or ErrEmailAlreadyVerified.
// Delivery failures are logged and counted but not returned.
func (e *Engine) SendEmailVerification(ctx context.Context, userID string) error {
	return e.sendVerification(ctx, userID, KindEmail)
}

// SendPhoneVerification is SendEmailVerification for the user's phone.
func (e *Engine) SendPhoneVerification(ctx context.Context, userID string) error {
	return e.sendVerification(ctx, userID, KindPhone)
}

// VerifyEmail marks email verified when submitted matches its pending code.
// Wrong codes fail with ErrInvalidCode; expired or exhausted codes fail with
// ErrCodeExpiredOrMaxAttempts.
func (e *Engine) VerifyEmail(ctx context.Context, email, submitted string) error {
	return e.verify(ctx, KindEmail, email, submitted)
}

// VerifyPhone is VerifyEmail for phone numbers.
func (e *Engine) VerifyPhone(ctx context.Context, phone, submitted string) error {
	return e.verify(ctx, KindPhone, phone, submitted)
}

func (e *Engine) sendVerification(ctx context.Context, userID string, kind Kind) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "SendVerification", kindAttr(kind), attribute.String("identity.user_id", userID))
	err := e.flows.SendVerification(ctx, userID, kind)
	endSpan(span, err)
	return err
}

func (e *Engine) verify(ctx context.Context, kind Kind, identifier, submitted string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Verify", kindAttr(kind))
	err := e.flows.Verify(ctx, kind, identifier, submitted)
	endSpan(span, err)
	return err
}
