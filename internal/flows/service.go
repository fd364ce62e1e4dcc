package flows

import (
	"context"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/linking"
	"github.com/MrEthical07/goIdentity/user"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssueSession != nil && s.deps.Refresh.Rotate != nil
}

func (s Service) IssueSession(ctx context.Context, userID string, revokePrior bool) (Tokens, error) {
	return RunIssueSession(ctx, userID, revokePrior, s.deps.Session)
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (user.User, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Login(ctx context.Context, kind credential.Kind, identifier, password string) (Tokens, error) {
	return RunLogin(ctx, kind, identifier, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, token string) (Tokens, error) {
	return RunRefresh(ctx, token, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, token string) error {
	return RunLogout(ctx, token, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) error {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) SendVerification(ctx context.Context, userID string, kind credential.Kind) error {
	return RunSendVerification(ctx, userID, kind, s.deps.Verification)
}

func (s Service) SendVerificationForUser(ctx context.Context, u user.User, kind credential.Kind) error {
	return RunSendVerificationForUser(ctx, u, kind, s.deps.Verification)
}

func (s Service) Verify(ctx context.Context, kind credential.Kind, identifier, submitted string) error {
	return RunVerify(ctx, kind, identifier, submitted, s.deps.Verification)
}

func (s Service) RequestPasswordReset(ctx context.Context, kind credential.Kind, identifier string) error {
	return RunRequestPasswordReset(ctx, kind, identifier, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, kind credential.Kind, identifier, submitted, newPassword, confirmPassword string) error {
	return RunResetPassword(ctx, kind, identifier, submitted, newPassword, confirmPassword, s.deps.PasswordReset)
}

func (s Service) BeginLink(ctx context.Context, sessionID string, id linking.Identity, opts LinkOptions) (linking.Outcome, error) {
	return RunBeginLink(ctx, sessionID, id, opts, s.deps.Link)
}

func (s Service) SelectLinkCandidate(ctx context.Context, sessionID, userID string) error {
	return RunSelectLinkCandidate(ctx, sessionID, userID, s.deps.Link)
}

func (s Service) CompleteLink(ctx context.Context, sessionID, password string) (linking.Outcome, error) {
	return RunCompleteLink(ctx, sessionID, password, s.deps.Link)
}

func (s Service) CancelLink(ctx context.Context, sessionID string) error {
	return RunCancelLink(ctx, sessionID, s.deps.Link)
}

func (s Service) SignInFederated(ctx context.Context, sessionID string, id linking.Identity, opts LinkOptions) (FederatedResult, error) {
	return RunSignInFederated(ctx, sessionID, id, opts, s.deps.Link)
}
