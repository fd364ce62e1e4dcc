package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Tokens is the flow-local token pair shape.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	UserID       string
}

// SessionDeps captures what is needed to mint a fresh token pair.
type SessionDeps struct {
	AccessTTL time.Duration

	RevokeAll    func(ctx context.Context, userID string) error
	IssueRefresh func(ctx context.Context, userID string) (string, error)
	RevokeIssued func(ctx context.Context, token string) error
	CreateAccess func(userID, scope string) (string, error)

	MetricInc      func(int)
	SessionCreated int
}

// RunIssueSession mints a refresh token and an access token for userID.
// When revokePrior is set every earlier refresh token of the user is revoked
// first, leaving the new one as the only live lineage.
func RunIssueSession(ctx context.Context, userID string, revokePrior bool, deps SessionDeps) (Tokens, error) {
	if deps.IssueRefresh == nil || deps.CreateAccess == nil {
		return Tokens{}, errors.New("session dependencies are not wired")
	}
	if deps.MetricInc == nil {
		deps.MetricInc = nopMetric
	}

	if revokePrior && deps.RevokeAll != nil {
		if err := deps.RevokeAll(ctx, userID); err != nil {
			return Tokens{}, fmt.Errorf("revoke prior sessions: %w", err)
		}
	}

	refreshToken, err := deps.IssueRefresh(ctx, userID)
	if err != nil {
		return Tokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	access, err := deps.CreateAccess(userID, "")
	if err != nil {
		if deps.RevokeIssued != nil {
			_ = deps.RevokeIssued(ctx, refreshToken)
		}
		return Tokens{}, fmt.Errorf("issue access token: %w", err)
	}

	deps.MetricInc(deps.SessionCreated)
	return Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    deps.AccessTTL,
		UserID:       userID,
	}, nil
}
