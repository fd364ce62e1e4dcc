package goIdentity

import (
	"io"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one recorded identity event.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink exposes events on a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes newline-delimited JSON.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes events through a zap logger.
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewZapSink(logger *zap.Logger) *ZapSink { return internalaudit.NewZapSink(logger) }

// Audit event types.
const (
	AuditEventRegisterSuccess        = "register_success"
	AuditEventRegisterDuplicate      = "register_duplicate"
	AuditEventLoginSuccess           = "login_success"
	AuditEventLoginFailure           = "login_failure"
	AuditEventLoginRateLimited       = "login_rate_limited"
	AuditEventRefreshSuccess         = "refresh_success"
	AuditEventRefreshInvalid         = "refresh_invalid"
	AuditEventRefreshReuseDetected   = "refresh_reuse_detected"
	AuditEventLogout                 = "logout"
	AuditEventLogoutAll              = "logout_all"
	AuditEventVerificationSent       = "verification_sent"
	AuditEventVerificationConfirmed  = "verification_confirmed"
	AuditEventVerificationFailure    = "verification_failure"
	AuditEventPasswordResetRequested = "password_reset_requested"
	AuditEventPasswordResetCompleted = "password_reset_completed"
	AuditEventPasswordResetFailure   = "password_reset_failure"
	AuditEventLinkInitiated          = "link_initiated"
	AuditEventLinkCompleted          = "link_completed"
	AuditEventLinkFailure            = "link_failure"
)
