package linking

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/oklog/ulid/v2"
)

// ErrStateNotFound is returned by a StateStore when the session has no live state.
var ErrStateNotFound = errors.New("linking: state not found")

// Claim is one identifier asserted by the federated provider.
type Claim struct {
	Kind     credential.Kind `json:"kind"`
	Value    string          `json:"value"`
	Verified bool            `json:"verified"`
}

// Identity is an externally asserted identity. Subject is the provider's
// stable user id.
type Identity struct {
	Provider string  `json:"provider"`
	Subject  string  `json:"subject"`
	Claims   []Claim `json:"claims,omitempty"`
}

// Candidate is a local account that plausibly matches an Identity.
// Verified is set when the account has proven ownership of at least one of
// the identifiers in MatchedBy.
type Candidate struct {
	UserID      string                  `json:"user_id"`
	MatchedBy   []credential.Identifier `json:"matched_by"`
	HasPassword bool                    `json:"has_password"`
	Verified    bool                    `json:"verified"`
}

// State is the parked reconciliation for one session.
type State struct {
	SessionID      string      `json:"session_id"`
	Identity       Identity    `json:"identity"`
	Candidates     []Candidate `json:"candidates"`
	SelectedUserID string      `json:"selected_user_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// IsExpired reports whether the state's lifetime has elapsed at now.
func (s State) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Candidate returns the candidate with userID, if present.
func (s State) Candidate(userID string) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.UserID == userID {
			return c, true
		}
	}
	return Candidate{}, false
}

// StateStore keeps linking states keyed by session id.
//
// Update must serialize concurrent updates of one session: fn sees the
// latest committed state, and its mutation is either fully applied or not at
// all. Returning an error from fn aborts the update.
type StateStore interface {
	Save(ctx context.Context, state State, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (State, error)
	Update(ctx context.Context, sessionID string, fn func(*State) error) error
	Delete(ctx context.Context, sessionID string) error
}

// NewSessionID returns a fresh lexically sortable session handle for callers
// that have no session layer of their own.
func NewSessionID() string {
	return ulid.Make().String()
}
