package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoRoute is returned by a Router that has no sender for a message's channel.
var ErrNoRoute = errors.New("delivery: no sender for channel")

// Channel is the medium a message travels over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Kind says what a message carries.
type Kind string

const (
	// KindVerificationCode carries a code proving ownership of an address.
	KindVerificationCode Kind = "verification_code"
	// KindPasswordResetCode carries a code authorizing a password change.
	KindPasswordResetCode Kind = "password_reset_code"
	// KindConfirmation tells the user an operation completed.
	KindConfirmation Kind = "confirmation"
)

// Message is one outbound notification. Code is empty for confirmations.
type Message struct {
	Kind      Kind          `json:"kind"`
	Channel   Channel       `json:"channel"`
	To        string        `json:"to"`
	UserID    string        `json:"user_id"`
	Code      string        `json:"code,omitempty"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
	// Event names the confirmed operation, e.g. "email_verified".
	Event string `json:"event,omitempty"`
}

// Validate checks the fields every transport relies on.
func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("delivery: empty recipient")
	}
	switch m.Kind {
	case KindVerificationCode, KindPasswordResetCode:
		if m.Code == "" {
			return fmt.Errorf("delivery: %s without code", m.Kind)
		}
	case KindConfirmation:
	default:
		return fmt.Errorf("delivery: unknown kind %q", m.Kind)
	}
	return nil
}

// Sender delivers a message. Implementations must not log Message.Code.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Nop discards every message.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
