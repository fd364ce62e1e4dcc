package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/user"
	"go.uber.org/zap"
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Kind            credential.Kind
	Identifier      string
	Password        string
	ConfirmPassword string
}

type RegisterMetrics struct {
	Success   int
	Duplicate int
}

type RegisterEvents struct {
	Success   string
	Duplicate string
}

type RegisterErrors struct {
	EngineNotReady         error
	IdentifierNotSpecified error
	InvalidIdentifier      error
	PasswordsDoNotMatch    error
	PasswordPolicy         error
	AlreadyRegistered      KindError
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Policy PasswordPolicy

	HashPassword func(string) (string, error)
	CreateUser   func(ctx context.Context, cred credential.Credential) (user.User, error)
	// SendVerification, when set, issues and delivers the first verification
	// code for email and phone registrations.
	SendVerification func(ctx context.Context, u user.User, kind credential.Kind) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates the request, stores a new account and starts
// verification of its identifier. A taken identifier fails with the
// kind-specific AlreadyRegistered error.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (user.User, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = nopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = nopAudit
	}
	deps.Logger = orNop(deps.Logger)
	if deps.HashPassword == nil || deps.CreateUser == nil {
		return nil, deps.Errors.EngineNotReady
	}

	id, err := credential.Parse(req.Kind, req.Identifier)
	switch {
	case errors.Is(err, credential.ErrIdentifierNotSpecified):
		return nil, deps.Errors.IdentifierNotSpecified
	case err != nil:
		if deps.Errors.InvalidIdentifier != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.InvalidIdentifier, err)
		}
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, deps.Errors.PasswordsDoNotMatch
	}
	if !deps.Policy.allows(req.Password) {
		return nil, deps.Errors.PasswordPolicy
	}

	hash, err := deps.HashPassword(req.Password)
	req.Password, req.ConfirmPassword = "", ""
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	cred, err := credential.New(id, hash)
	if err != nil {
		return nil, err
	}

	u, err := deps.CreateUser(ctx, cred)
	if errors.Is(err, user.ErrConflict) {
		taken := kindErr(deps.Errors.AlreadyRegistered, id.Kind, err)
		deps.MetricInc(deps.Metrics.Duplicate)
		deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", taken, func() map[string]string {
			return map[string]string{"kind": id.Kind.String()}
		})
		return nil, taken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, u.ID(), nil, func() map[string]string {
		return map[string]string{"kind": id.Kind.String()}
	})

	if id.Kind.Verifiable() && deps.SendVerification != nil {
		if err := deps.SendVerification(ctx, u, id.Kind); err != nil {
			deps.Logger.Warn("initial verification code not sent",
				zap.String("user_id", u.ID()),
				zap.Stringer("kind", id.Kind),
				zap.Error(err),
			)
		}
	}
	return u, nil
}
