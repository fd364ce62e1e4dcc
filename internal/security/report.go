package security

import (
	"fmt"
	"time"
)

type PasswordReport struct {
	Algorithm   string `json:"algorithm"`
	BcryptCost  int    `json:"bcrypt_cost,omitempty"`
	MemoryKB    uint32 `json:"argon2_memory_kb,omitempty"`
	Time        uint32 `json:"argon2_time,omitempty"`
	Parallelism uint8  `json:"argon2_parallelism,omitempty"`
	MinLength   int    `json:"min_length"`
}

// Report is what BuildReport derives. It never carries key material.
type Report struct {
	SigningAlgorithm       string         `json:"signing_algorithm"`
	AccessTTL              time.Duration  `json:"access_ttl"`
	RefreshTTL             time.Duration  `json:"refresh_ttl"`
	Password               PasswordReport `json:"password"`
	VerifiedLoginRequired  bool           `json:"verified_login_required"`
	RevokeOnLogin          bool           `json:"revoke_on_login"`
	RateLimitingActive     bool           `json:"rate_limiting_active"`
	RedisBacked            bool           `json:"redis_backed"`
	AuditEnabled           bool           `json:"audit_enabled"`
	AuditMayDrop           bool           `json:"audit_may_drop"`
	VerificationCodeDigits int            `json:"verification_code_digits"`
	ResetCodeDigits        int            `json:"reset_code_digits"`
	Warnings               []string       `json:"warnings,omitempty"`
}

type ReportInput struct {
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	Password               PasswordReport
	VerifiedLoginRequired  bool
	RevokeOnLogin          bool
	RateLimitEnabled       bool
	MaxLoginFailures       int
	LoginWindow            time.Duration
	RedisBacked            bool
	AuditEnabled           bool
	AuditDropIfFull        bool
	VerificationCodeDigits int
	ResetCodeDigits        int
}

func BuildReport(input ReportInput) Report {
	// Throttles live in Redis; without it they are never consulted.
	rateLimiting := input.RateLimitEnabled &&
		input.RedisBacked &&
		input.MaxLoginFailures > 0 &&
		input.LoginWindow > 0

	r := Report{
		SigningAlgorithm:       input.SigningAlgorithm,
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		Password:               input.Password,
		VerifiedLoginRequired:  input.VerifiedLoginRequired,
		RevokeOnLogin:          input.RevokeOnLogin,
		RateLimitingActive:     rateLimiting,
		RedisBacked:            input.RedisBacked,
		AuditEnabled:           input.AuditEnabled,
		AuditMayDrop:           input.AuditEnabled && input.AuditDropIfFull,
		VerificationCodeDigits: input.VerificationCodeDigits,
		ResetCodeDigits:        input.ResetCodeDigits,
	}
	r.Warnings = warnings(input, rateLimiting)
	return r
}

func warnings(in ReportInput, rateLimiting bool) []string {
	var out []string
	if in.SigningAlgorithm == "hs256" {
		out = append(out, "hs256 shares the signing secret with every verifier; prefer ed25519")
	}
	if in.AccessTTL > time.Hour {
		out = append(out, fmt.Sprintf("access tokens live %s and cannot be revoked before expiry", in.AccessTTL))
	}
	if in.Password.Algorithm == "bcrypt" && in.Password.BcryptCost < 10 {
		out = append(out, fmt.Sprintf("bcrypt cost %d is below 10", in.Password.BcryptCost))
	}
	if in.Password.Algorithm == "argon2id" && in.Password.MemoryKB < 19*1024 {
		out = append(out, fmt.Sprintf("argon2id memory %d KiB is below 19 MiB", in.Password.MemoryKB))
	}
	if in.Password.MinLength < 8 {
		out = append(out, fmt.Sprintf("minimum password length %d is below 8", in.Password.MinLength))
	}
	if !rateLimiting {
		out = append(out, "login and code throttling is inactive")
	}
	if in.VerificationCodeDigits < 6 || in.ResetCodeDigits < 6 {
		out = append(out, "codes shorter than 6 digits are easy to guess")
	}
	return out
}
