package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/user"
	"go.opentelemetry.io/otel/attribute"
)

// Register creates an account for one identifier and, for email and phone,
// sends the first verification code when Verification.SendOnRegister is on.
//
// A taken identifier fails with the kind-specific AlreadyRegistered error,
// for example ErrEmailAlreadyRegistered.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (user.User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Register", kindAttr(req.Kind))
	u, err := e.flows.Register(ctx, registerRequest(req))
	endSpan(span, err)
	return u, err
}

// Login authenticates identifier and password and issues a token pair.
//
// Unknown identifiers and wrong passwords both fail with the kind-specific
// InvalidCredentials error. Accounts without a password fail with
// ErrPasswordNotSet. With Verification.RequireVerifiedLogin, unverified
// email or phone identifiers fail with ErrEmailNotVerified or
// ErrPhoneNotVerified. With Session.RevokeOnLogin every earlier refresh
// token of the user is revoked.
func (e *Engine) Login(ctx context.Context, kind Kind, identifier, password string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login", kindAttr(kind))
	tokens, err := e.flows.Login(ctx, kind, identifier, password)
	if err != nil {
		endSpan(span, err)
		return TokenPair{}, err
	}
	span.SetAttributes(attribute.String("identity.user_id", tokens.UserID))
	endSpan(span, nil)
	return tokenPair(tokens), nil
}

// Refresh rotates refreshToken and issues a new pair. Presenting a token
// that was already rotated revokes its whole chain and fails with
// ErrInvalidRefreshToken. Unknown tokens fail with ErrRefreshTokenNotFound.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	tokens, err := e.flows.Refresh(ctx, refreshToken)
	endSpan(span, err)
	if err != nil {
		return TokenPair{}, err
	}
	return tokenPair(tokens), nil
}

// Logout revokes refreshToken. Logging out with an already revoked token
// succeeds; an unknown token fails with ErrRefreshTokenNotFound.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	err := e.flows.Logout(ctx, refreshToken)
	endSpan(span, err)
	return err
}

// LogoutAll revokes every refresh token of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "LogoutAll", attribute.String("identity.user_id", userID))
	err := e.flows.LogoutAll(ctx, userID)
	endSpan(span, err)
	return err
}
