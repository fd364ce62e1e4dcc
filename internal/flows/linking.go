package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/linking"
	"go.uber.org/zap"
)

type LinkMetrics struct {
	LinkInitiated   int
	LinkCompleted   int
	LinkConflict    int
	LinkFailure     int
	FederatedSignIn int
}

type LinkEvents struct {
	LinkInitiated string
	LinkCompleted string
	LinkFailure   string
}

type LinkErrors struct {
	EngineNotReady error
	BadRequest     error
	Unauthorized   error
}

// LinkDeps captures account-linking dependencies.
type LinkDeps struct {
	AllowedKinds  []credential.Kind
	RevokeOnLogin bool

	Initiate     func(ctx context.Context, sessionID string, id linking.Identity, opts linking.InitiateOptions) (linking.Outcome, error)
	Select       func(ctx context.Context, sessionID, userID string) error
	Complete     func(ctx context.Context, sessionID, password string) (linking.Outcome, error)
	Cancel       func(ctx context.Context, sessionID string) error
	IssueSession func(ctx context.Context, userID string, revokePrior bool) (Tokens, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics LinkMetrics
	Events  LinkEvents
	Errors  LinkErrors
}

func (d *LinkDeps) ready() bool {
	if d.MetricInc == nil {
		d.MetricInc = nopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = nopAudit
	}
	d.Logger = orNop(d.Logger)
	return d.Initiate != nil && d.Select != nil && d.Complete != nil && d.Cancel != nil
}

// LinkOptions is the caller's view of what it can do with an outcome.
type LinkOptions struct {
	AutoComplete    bool
	CanDisambiguate bool
}

// FederatedResult is the outcome of a federated sign-in. Tokens is set only
// when the identity resolved to exactly one linked account.
type FederatedResult struct {
	Outcome linking.Outcome
	Tokens  *Tokens
}

// RunBeginLink reconciles a federated identity against local accounts.
func RunBeginLink(ctx context.Context, sessionID string, id linking.Identity, opts LinkOptions, deps LinkDeps) (linking.Outcome, error) {
	if !deps.ready() {
		return linking.Outcome{}, deps.Errors.EngineNotReady
	}
	out, err := deps.Initiate(ctx, sessionID, id, linking.InitiateOptions{
		AllowedKinds:    deps.AllowedKinds,
		AutoComplete:    opts.AutoComplete,
		CanDisambiguate: opts.CanDisambiguate,
	})
	if err != nil {
		return linking.Outcome{}, mapLinkError(ctx, err, deps)
	}

	switch out.Status {
	case linking.StatusInitiated:
		deps.MetricInc(deps.Metrics.LinkInitiated)
		deps.EmitAudit(ctx, deps.Events.LinkInitiated, true, "", nil, func() map[string]string {
			return map[string]string{"provider": id.Provider, "candidates": strconv.Itoa(len(out.Candidates))}
		})
	case linking.StatusCompleted:
		deps.MetricInc(deps.Metrics.LinkCompleted)
		deps.EmitAudit(ctx, deps.Events.LinkCompleted, true, out.UserID, nil, func() map[string]string {
			return map[string]string{"provider": id.Provider, "mode": "auto"}
		})
	case linking.StatusConflict:
		deps.MetricInc(deps.Metrics.LinkConflict)
	}
	return out, nil
}

// RunSelectLinkCandidate records the candidate the user claims to own.
func RunSelectLinkCandidate(ctx context.Context, sessionID, userID string, deps LinkDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	if err := deps.Select(ctx, sessionID, userID); err != nil {
		return mapLinkError(ctx, err, deps)
	}
	return nil
}

// RunCompleteLink proves ownership of the selected candidate with its
// password and attaches the federated identity.
func RunCompleteLink(ctx context.Context, sessionID, password string, deps LinkDeps) (linking.Outcome, error) {
	if !deps.ready() {
		return linking.Outcome{}, deps.Errors.EngineNotReady
	}
	out, err := deps.Complete(ctx, sessionID, password)
	if err != nil {
		return linking.Outcome{}, mapLinkError(ctx, err, deps)
	}
	deps.MetricInc(deps.Metrics.LinkCompleted)
	deps.EmitAudit(ctx, deps.Events.LinkCompleted, true, out.UserID, nil, func() map[string]string {
		return map[string]string{"mode": "password"}
	})
	return out, nil
}

// RunCancelLink discards any parked linking state for the session.
func RunCancelLink(ctx context.Context, sessionID string, deps LinkDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	return deps.Cancel(ctx, sessionID)
}

// RunSignInFederated begins linking and, when the identity already belongs
// to an account or links immediately, issues tokens for that account.
func RunSignInFederated(ctx context.Context, sessionID string, id linking.Identity, opts LinkOptions, deps LinkDeps) (FederatedResult, error) {
	out, err := RunBeginLink(ctx, sessionID, id, opts, deps)
	if err != nil {
		return FederatedResult{}, err
	}
	if out.Status != linking.StatusAlreadyLinked && out.Status != linking.StatusCompleted {
		return FederatedResult{Outcome: out}, nil
	}
	if deps.IssueSession == nil {
		return FederatedResult{}, deps.Errors.EngineNotReady
	}
	tokens, err := deps.IssueSession(ctx, out.UserID, deps.RevokeOnLogin)
	if err != nil {
		return FederatedResult{}, err
	}
	deps.MetricInc(deps.Metrics.FederatedSignIn)
	return FederatedResult{Outcome: out, Tokens: &tokens}, nil
}

func mapLinkError(ctx context.Context, err error, deps LinkDeps) error {
	var mapped error
	switch {
	case errors.Is(err, linking.ErrBadRequest):
		mapped = deps.Errors.BadRequest
	case errors.Is(err, linking.ErrUnauthorized):
		mapped = deps.Errors.Unauthorized
	default:
		return err
	}
	if mapped == nil {
		mapped = err
	}
	deps.MetricInc(deps.Metrics.LinkFailure)
	deps.EmitAudit(ctx, deps.Events.LinkFailure, false, "", mapped, nil)
	return mapped
}
