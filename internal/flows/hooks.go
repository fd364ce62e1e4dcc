package flows

import (
	"context"
	"unicode/utf8"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/delivery"
	"go.uber.org/zap"
)

// AuditFunc emits one audit event. metadata is only evaluated when the
// engine actually records the event.
type AuditFunc func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

// KindError builds the kind-specific variant of a kind-parameterised error.
type KindError func(credential.Kind) error

func nopMetric(int) {}

func nopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func kindErr(fn KindError, kind credential.Kind, fallback error) error {
	if fn == nil {
		return fallback
	}
	if err := fn(kind); err != nil {
		return err
	}
	return fallback
}

// PasswordPolicy bounds the length of new passwords in characters. Zero
// disables a bound.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

func (p PasswordPolicy) allows(password string) bool {
	n := utf8.RuneCountInString(password)
	if p.MinLength > 0 && n < p.MinLength {
		return false
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return false
	}
	return true
}

func channelFor(kind credential.Kind) (code.Channel, bool) {
	switch kind {
	case credential.KindEmail:
		return code.ChannelEmail, true
	case credential.KindPhone:
		return code.ChannelPhone, true
	}
	return 0, false
}

func deliveryChannel(ch code.Channel) delivery.Channel {
	if ch == code.ChannelPhone {
		return delivery.ChannelSMS
	}
	return delivery.ChannelEmail
}
