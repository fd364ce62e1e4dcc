package goIdentity

import (
	"context"

	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/linking"
	"go.opentelemetry.io/otel/attribute"
)

// NewLinkSessionID returns a fresh linking session handle for callers with
// no session layer of their own.
func NewLinkSessionID() string {
	return linking.NewSessionID()
}

// BeginLink reconciles a federated identity against local accounts and parks
// the result under sessionID.
//
// The outcome is Skipped when no verified claim matches a local account,
// AlreadyLinked when the identity is attached already, Initiated when the
// user must pick and prove a candidate, Completed when AutoComplete linked
// a single candidate, and Conflict when several candidates exist and the
// caller cannot disambiguate.
func (e *Engine) BeginLink(ctx context.Context, sessionID string, id FederatedIdentity, opts LinkOptions) (LinkOutcome, error) {
	if !e.ready() {
		return LinkOutcome{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "BeginLink", attribute.String("identity.provider", id.Provider))
	out, err := e.flows.BeginLink(ctx, sessionID, id, linkOptions(opts))
	endSpan(span, err)
	return out, err
}

// SelectLinkCandidate records which candidate the user claims to own.
// Unknown sessions and candidates fail with ErrLinkingBadRequest.
func (e *Engine) SelectLinkCandidate(ctx context.Context, sessionID, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "SelectLinkCandidate")
	err := e.flows.SelectLinkCandidate(ctx, sessionID, userID)
	endSpan(span, err)
	return err
}

// CompleteLink proves ownership of the selected candidate with its password
// and attaches the federated identity. A wrong password fails with
// ErrLinkingUnauthorized and leaves the session open for another try.
//
// It issues no tokens; call SignInFederated afterwards.
func (e *Engine) CompleteLink(ctx context.Context, sessionID, password string) (LinkOutcome, error) {
	if !e.ready() {
		return LinkOutcome{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "CompleteLink")
	out, err := e.flows.CompleteLink(ctx, sessionID, password)
	endSpan(span, err)
	return out, err
}

// CancelLink discards the linking session. Cancelling an unknown session
// succeeds.
func (e *Engine) CancelLink(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "CancelLink")
	err := e.flows.CancelLink(ctx, sessionID)
	endSpan(span, err)
	return err
}

// PendingLink returns the parked linking state of sessionID. Unknown or
// expired sessions fail with ErrLinkingBadRequest.
func (e *Engine) PendingLink(ctx context.Context, sessionID string) (linking.State, error) {
	if !e.ready() {
		return linking.State{}, ErrEngineNotReady
	}
	return e.linker.Pending(ctx, sessionID)
}

// SignInFederated begins linking and issues tokens when the identity
// belongs to exactly one account, either linked earlier or auto-completed
// now. Otherwise Tokens is nil and the outcome says what to do next.
func (e *Engine) SignInFederated(ctx context.Context, sessionID string, id FederatedIdentity, opts LinkOptions) (FederatedSignIn, error) {
	if !e.ready() {
		return FederatedSignIn{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "SignInFederated", attribute.String("identity.provider", id.Provider))
	res, err := e.flows.SignInFederated(ctx, sessionID, id, linkOptions(opts))
	endSpan(span, err)
	if err != nil {
		return FederatedSignIn{}, err
	}
	out := FederatedSignIn{Outcome: res.Outcome}
	if res.Tokens != nil {
		pair := tokenPair(*res.Tokens)
		out.Tokens = &pair
	}
	return out, nil
}

func linkOptions(o LinkOptions) internalflows.LinkOptions {
	return internalflows.LinkOptions{
		AutoComplete:    o.AutoComplete,
		CanDisambiguate: o.CanDisambiguate,
	}
}

func registerRequest(r RegisterRequest) internalflows.RegisterRequest {
	return internalflows.RegisterRequest{
		Kind:            r.Kind,
		Identifier:      r.Identifier,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
	}
}
