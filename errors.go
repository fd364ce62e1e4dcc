package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/linking"
	"github.com/MrEthical07/goIdentity/refresh"
)

var (
	// ErrIdentifierNotSpecified is returned when no identifier value was given
	// or the operation does not accept the given kind.
	ErrIdentifierNotSpecified = credential.ErrIdentifierNotSpecified
	// ErrInvalidIdentifier is returned by registration for malformed values.
	ErrInvalidIdentifier = credential.ErrInvalidIdentifier
	// ErrAlreadyRegistered is the family of ErrEmailAlreadyRegistered,
	// ErrPhoneAlreadyRegistered and ErrUsernameAlreadyRegistered.
	ErrAlreadyRegistered = errors.New("identifier already registered")
	// ErrPasswordsDoNotMatch is returned when a password and its confirmation differ.
	ErrPasswordsDoNotMatch = errors.New("passwords do not match")
	// ErrInvalidCredentials is the family of the kind-specific invalid
	// credential errors. Unknown identifiers and wrong passwords share it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified is the family of ErrEmailNotVerified and ErrPhoneNotVerified.
	ErrNotVerified = errors.New("identifier not verified")
	// ErrPasswordNotSet is returned when an account has no password, for
	// example a federated-only account.
	ErrPasswordNotSet = errors.New("password not set")
	// ErrRefreshTokenNotFound is returned for refresh tokens the store does not know.
	ErrRefreshTokenNotFound = refresh.ErrTokenNotFound
	// ErrInvalidRefreshToken is returned for known refresh tokens that are
	// expired, revoked or already rotated.
	ErrInvalidRefreshToken = refresh.ErrTokenInvalid
	// ErrUserNotFound is returned by verification and password reset when the
	// identifier or user id matches no account. Login never returns it.
	ErrUserNotFound = errors.New("user not found")
	// ErrIdentifierNotSet is the family of ErrEmailNotSet and ErrPhoneNotSet.
	ErrIdentifierNotSet = errors.New("identifier not set")
	// ErrAlreadyVerified is the family of ErrEmailAlreadyVerified and ErrPhoneAlreadyVerified.
	ErrAlreadyVerified = errors.New("identifier already verified")
	// ErrInvalidCode is returned when a submitted code matches no live code.
	ErrInvalidCode = code.ErrInvalidCode
	// ErrCodeExpiredOrMaxAttempts is returned when the matched code expired or
	// ran out of attempts. Which of the two is never revealed.
	ErrCodeExpiredOrMaxAttempts = code.ErrCodeExpiredOrMaxAttempts
	// ErrLinkingBadRequest is returned for unknown or expired linking states,
	// unknown candidates and completion before selection.
	ErrLinkingBadRequest = linking.ErrBadRequest
	// ErrLinkingUnauthorized is returned when the selected candidate's
	// password does not verify.
	ErrLinkingUnauthorized = linking.ErrUnauthorized

	// ErrPasswordPolicy is returned when a new password violates the length policy.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrInvalidAccessToken is returned by ValidateAccessToken.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrLoginRateLimited is returned by Login once an identifier has used up
	// its failed attempts for the current window, even for a correct password.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrCodeRateLimited is returned when too many codes were requested for one identifier.
	ErrCodeRateLimited = errors.New("code issuance rate limited")
	// ErrEngineNotReady is returned by an Engine that was not built with Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// KindError is a kind-specific variant of a family error such as
// ErrAlreadyRegistered. errors.Is matches both the variant and its family,
// and errors.As recovers the Kind.
type KindError struct {
	Err  error
	Kind credential.Kind
}

func (e *KindError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error { return e.Err }

var (
	ErrEmailAlreadyRegistered    = &KindError{Err: ErrAlreadyRegistered, Kind: credential.KindEmail}
	ErrPhoneAlreadyRegistered    = &KindError{Err: ErrAlreadyRegistered, Kind: credential.KindPhone}
	ErrUsernameAlreadyRegistered = &KindError{Err: ErrAlreadyRegistered, Kind: credential.KindUsername}

	ErrInvalidEmailCredentials    = &KindError{Err: ErrInvalidCredentials, Kind: credential.KindEmail}
	ErrInvalidPhoneCredentials    = &KindError{Err: ErrInvalidCredentials, Kind: credential.KindPhone}
	ErrInvalidUsernameCredentials = &KindError{Err: ErrInvalidCredentials, Kind: credential.KindUsername}

	ErrEmailNotVerified = &KindError{Err: ErrNotVerified, Kind: credential.KindEmail}
	ErrPhoneNotVerified = &KindError{Err: ErrNotVerified, Kind: credential.KindPhone}

	ErrEmailNotSet = &KindError{Err: ErrIdentifierNotSet, Kind: credential.KindEmail}
	ErrPhoneNotSet = &KindError{Err: ErrIdentifierNotSet, Kind: credential.KindPhone}

	ErrEmailAlreadyVerified = &KindError{Err: ErrAlreadyVerified, Kind: credential.KindEmail}
	ErrPhoneAlreadyVerified = &KindError{Err: ErrAlreadyVerified, Kind: credential.KindPhone}
)

func alreadyRegistered(kind credential.Kind) error {
	switch kind {
	case credential.KindEmail:
		return ErrEmailAlreadyRegistered
	case credential.KindPhone:
		return ErrPhoneAlreadyRegistered
	case credential.KindUsername:
		return ErrUsernameAlreadyRegistered
	}
	return ErrAlreadyRegistered
}

func invalidCredentials(kind credential.Kind) error {
	switch kind {
	case credential.KindEmail:
		return ErrInvalidEmailCredentials
	case credential.KindPhone:
		return ErrInvalidPhoneCredentials
	case credential.KindUsername:
		return ErrInvalidUsernameCredentials
	}
	return ErrInvalidCredentials
}

func notVerified(kind credential.Kind) error {
	switch kind {
	case credential.KindEmail:
		return ErrEmailNotVerified
	case credential.KindPhone:
		return ErrPhoneNotVerified
	}
	return ErrNotVerified
}

func identifierNotSet(kind credential.Kind) error {
	switch kind {
	case credential.KindEmail:
		return ErrEmailNotSet
	case credential.KindPhone:
		return ErrPhoneNotSet
	}
	return ErrIdentifierNotSet
}

func alreadyVerified(kind credential.Kind) error {
	switch kind {
	case credential.KindEmail:
		return ErrEmailAlreadyVerified
	case credential.KindPhone:
		return ErrPhoneAlreadyVerified
	}
	return ErrAlreadyVerified
}
