package code

import (
	"fmt"
	"time"
)

// Channel is the out-of-band medium a code is delivered over.
type Channel uint8

const (
	ChannelEmail Channel = iota + 1
	ChannelPhone
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelPhone:
		return "phone"
	}
	return fmt.Sprintf("channel(%d)", uint8(c))
}

// Purpose is what a successful verification authorizes.
type Purpose uint8

const (
	// PurposeVerify proves ownership of an email address or phone number.
	PurposeVerify Purpose = iota + 1
	// PurposeReset authorizes a password change.
	PurposeReset
)

func (p Purpose) String() string {
	switch p {
	case PurposeVerify:
		return "verify"
	case PurposeReset:
		return "reset"
	}
	return fmt.Sprintf("purpose(%d)", uint8(p))
}

// Target names the scope a code belongs to.
type Target struct {
	UserID          string
	Channel         Channel
	Purpose         Purpose
	IdentifierValue string
}

// Record is a persisted code. CodeHash is never the plaintext.
type Record struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Channel         Channel   `json:"channel"`
	Purpose         Purpose   `json:"purpose"`
	IdentifierValue string    `json:"identifier_value"`
	CodeHash        string    `json:"code_hash"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	FailedAttempts  int       `json:"failed_attempts"`
}

// IsExpired reports whether the code's lifetime has elapsed at now.
func (r Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsValid reports !expired && FailedAttempts < maxAttempts.
func (r Record) IsValid(now time.Time, maxAttempts int) bool {
	return !r.IsExpired(now) && r.FailedAttempts < maxAttempts
}
