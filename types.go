package goIdentity

import (
	"time"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/linking"
)

// Kind is the identifier kind of a credential.
type Kind = credential.Kind

const (
	KindEmail    = credential.KindEmail
	KindPhone    = credential.KindPhone
	KindUsername = credential.KindUsername
)

// TokenType is the token_type advertised with every issued pair.
const TokenType = "Bearer"

// TokenPair is returned by Login, Refresh and federated sign-in.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
}

func tokenPair(t flows.Tokens) TokenPair {
	return TokenPair{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    TokenType,
		ExpiresIn:    int64(t.ExpiresIn / time.Second),
		UserID:       t.UserID,
	}
}

// RegisterRequest creates an account for one identifier. Password and
// ConfirmPassword must match.
type RegisterRequest struct {
	Kind            Kind   `json:"kind"`
	Identifier      string `json:"identifier"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AuthResult is returned by [Engine.ValidateAccessToken].
type AuthResult struct {
	UserID    string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// FederatedIdentity is an identity asserted by an external provider, with
// the identifier claims it vouches for.
type FederatedIdentity = linking.Identity

// FederatedClaim is one identifier asserted by a provider.
type FederatedClaim = linking.Claim

// LinkOutcome reports what linking decided for a federated identity.
type LinkOutcome = linking.Outcome

// LinkCandidate is a local account the federated identity may belong to.
type LinkCandidate = linking.Candidate

// LinkStatus is the status carried by a LinkOutcome.
type LinkStatus = linking.Status

const (
	LinkSkipped       = linking.StatusSkipped
	LinkInitiated     = linking.StatusInitiated
	LinkCompleted     = linking.StatusCompleted
	LinkConflict      = linking.StatusConflict
	LinkAlreadyLinked = linking.StatusAlreadyLinked
)

// LinkOptions describes what the caller can do with a linking outcome.
// AutoComplete links a single verified candidate without a password prompt.
// CanDisambiguate means the caller can show a picker for several candidates;
// without it several candidates are a conflict.
type LinkOptions struct {
	AutoComplete    bool
	CanDisambiguate bool
}

// FederatedSignIn is the result of [Engine.SignInFederated]. Tokens is nil
// unless the identity resolved to one linked account.
type FederatedSignIn struct {
	Outcome LinkOutcome
	Tokens  *TokenPair
}
