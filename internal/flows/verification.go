package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/delivery"
	"github.com/MrEthical07/goIdentity/user"
	"go.uber.org/zap"
)

// CodeDeps is the code-issuance half shared by verification and reset.
type CodeDeps struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int

	CheckIssueRate func(ctx context.Context, t code.Target) error
	Issue          func(ctx context.Context, t code.Target, length int, ttl time.Duration) (string, code.Record, error)
	Verify         func(ctx context.Context, t code.Target, submitted string, maxAttempts int) (code.Record, error)
	Deliver        func(ctx context.Context, msg delivery.Message) error
}

// CodeMetrics carries metric IDs shared by code-backed flows.
type CodeMetrics struct {
	CodeIssued      int
	CodeRateLimited int
	CodeRejected    int
	DeliveryFailure int
}

// VerificationMetrics carries metric IDs used by verification flows.
type VerificationMetrics struct {
	CodeMetrics
	Requested int
	Confirmed int
	Failure   int
}

// VerificationEvents carries audit event names used by verification flows.
type VerificationEvents struct {
	Sent      string
	Confirmed string
	Failure   string
}

// VerificationErrors carries host-level sentinel errors used by verification flows.
type VerificationErrors struct {
	EngineNotReady           error
	IdentifierNotSpecified   error
	UserNotFound             error
	InvalidCode              error
	CodeExpiredOrMaxAttempts error
	CodeRateLimited          error
	IdentifierNotSet         KindError
	AlreadyVerified          KindError
}

// VerificationDeps captures send/verify dependencies for email and phone.
type VerificationDeps struct {
	Codes CodeDeps

	FindUserByID func(ctx context.Context, id string) (user.User, error)
	FindUser     func(ctx context.Context, id credential.Identifier) (user.User, error)
	MarkVerified func(ctx context.Context, userID string, kind credential.Kind) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

func (d *VerificationDeps) ready() bool {
	if d.MetricInc == nil {
		d.MetricInc = nopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = nopAudit
	}
	d.Logger = orNop(d.Logger)
	return d.FindUserByID != nil && d.FindUser != nil && d.MarkVerified != nil &&
		d.Codes.Issue != nil && d.Codes.Verify != nil
}

// RunSendVerification issues a fresh verification code for the user's
// identifier of the given kind and delivers it. Calling it again is a resend.
func RunSendVerification(ctx context.Context, userID string, kind credential.Kind, deps VerificationDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	u, err := deps.FindUserByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return deps.Errors.UserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	return RunSendVerificationForUser(ctx, u, kind, deps)
}

// RunSendVerificationForUser is RunSendVerification for a user already in hand.
func RunSendVerificationForUser(ctx context.Context, u user.User, kind credential.Kind, deps VerificationDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	ch, ok := channelFor(kind)
	if !ok {
		return deps.Errors.IdentifierNotSpecified
	}
	value := user.IdentifierValue(u, kind)
	if value == "" {
		return kindErr(deps.Errors.IdentifierNotSet, kind, deps.Errors.UserNotFound)
	}
	if user.IsVerified(u, kind) {
		return kindErr(deps.Errors.AlreadyVerified, kind, deps.Errors.InvalidCode)
	}

	deps.MetricInc(deps.Metrics.Requested)
	target := code.Target{UserID: u.ID(), Channel: ch, Purpose: code.PurposeVerify, IdentifierValue: value}
	if err := issueAndDeliver(ctx, target, delivery.KindVerificationCode, deps.Codes, deps.Metrics.CodeMetrics, deps.Errors.CodeRateLimited, deps.MetricInc, deps.Logger); err != nil {
		return err
	}
	deps.EmitAudit(ctx, deps.Events.Sent, true, u.ID(), nil, func() map[string]string {
		return map[string]string{"channel": ch.String()}
	})
	return nil
}

// RunVerify checks submitted against the pending verification code for the
// identifier and, on success, marks the identifier verified.
func RunVerify(ctx context.Context, kind credential.Kind, raw, submitted string, deps VerificationDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	ch, ok := channelFor(kind)
	if !ok {
		return deps.Errors.IdentifierNotSpecified
	}
	id, err := credential.Parse(kind, raw)
	if err != nil {
		if errors.Is(err, credential.ErrIdentifierNotSpecified) {
			return deps.Errors.IdentifierNotSpecified
		}
		return deps.Errors.UserNotFound
	}

	u, err := deps.FindUser(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return deps.Errors.UserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.IsVerified(u, kind) {
		return kindErr(deps.Errors.AlreadyVerified, kind, deps.Errors.InvalidCode)
	}

	target := code.Target{UserID: u.ID(), Channel: ch, Purpose: code.PurposeVerify, IdentifierValue: id.Value}
	if _, err := deps.Codes.Verify(ctx, target, submitted, deps.Codes.MaxAttempts); err != nil {
		mapped := mapCodeError(err, deps.Errors.InvalidCode, deps.Errors.CodeExpiredOrMaxAttempts)
		deps.MetricInc(deps.Metrics.Failure)
		if errors.Is(err, code.ErrCodeExpiredOrMaxAttempts) {
			deps.MetricInc(deps.Metrics.CodeRejected)
		}
		deps.EmitAudit(ctx, deps.Events.Failure, false, u.ID(), mapped, func() map[string]string {
			return codeFailureMetadata(ch, err)
		})
		return mapped
	}

	if err := deps.MarkVerified(ctx, u.ID(), kind); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	deps.MetricInc(deps.Metrics.Confirmed)
	deps.EmitAudit(ctx, deps.Events.Confirmed, true, u.ID(), nil, func() map[string]string {
		return map[string]string{"channel": ch.String()}
	})

	confirm(ctx, deps.Codes, delivery.Message{
		Kind:    delivery.KindConfirmation,
		Channel: deliveryChannel(ch),
		To:      id.Value,
		UserID:  u.ID(),
		Event:   kind.String() + "_verified",
	}, deps.Metrics.DeliveryFailure, deps.MetricInc, deps.Logger)
	return nil
}

// issueAndDeliver runs the shared issue half: throttle, issue, deliver.
// Delivery failures are logged and counted, never returned; the code is
// already valid and a resend will deliver a new one.
func issueAndDeliver(
	ctx context.Context,
	t code.Target,
	kind delivery.Kind,
	deps CodeDeps,
	metrics CodeMetrics,
	rateLimited error,
	metricInc func(int),
	logger *zap.Logger,
) error {
	if deps.CheckIssueRate != nil {
		if err := deps.CheckIssueRate(ctx, t); err != nil {
			metricInc(metrics.CodeRateLimited)
			return rateLimited
		}
	}

	plain, rec, err := deps.Issue(ctx, t, deps.Length, deps.TTL)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	metricInc(metrics.CodeIssued)

	if deps.Deliver == nil {
		return nil
	}
	msg := delivery.Message{
		Kind:      kind,
		Channel:   deliveryChannel(t.Channel),
		To:        t.IdentifierValue,
		UserID:    t.UserID,
		Code:      plain,
		ExpiresIn: rec.ExpiresAt.Sub(rec.CreatedAt),
	}
	if err := deps.Deliver(ctx, msg); err != nil {
		metricInc(metrics.DeliveryFailure)
		logger.Warn("code delivery failed",
			zap.String("user_id", t.UserID),
			zap.Stringer("channel", t.Channel),
			zap.Stringer("purpose", t.Purpose),
			zap.Error(err),
		)
	}
	return nil
}

func confirm(ctx context.Context, deps CodeDeps, msg delivery.Message, failureMetric int, metricInc func(int), logger *zap.Logger) {
	if deps.Deliver == nil {
		return
	}
	if err := deps.Deliver(ctx, msg); err != nil {
		metricInc(failureMetric)
		logger.Warn("confirmation delivery failed",
			zap.String("user_id", msg.UserID),
			zap.String("event", msg.Event),
			zap.Error(err),
		)
	}
}

func mapCodeError(err, invalid, rejected error) error {
	switch {
	case errors.Is(err, code.ErrCodeExpiredOrMaxAttempts) && rejected != nil:
		return rejected
	case errors.Is(err, code.ErrInvalidCode) && invalid != nil:
		return invalid
	case errors.Is(err, code.ErrCodeExpiredOrMaxAttempts), errors.Is(err, code.ErrInvalidCode):
		return err
	default:
		return fmt.Errorf("verify code: %w", err)
	}
}

func codeFailureMetadata(ch code.Channel, err error) map[string]string {
	meta := map[string]string{"channel": ch.String()}
	if reason, ok := code.RejectionReason(err); ok {
		meta["reason"] = reason.String()
	}
	return meta
}
