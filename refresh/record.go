package refresh

import "time"

// State is the lifecycle position of a refresh token.
type State uint8

const (
	StateActive State = iota + 1
	StateReplaced
	StateRevoked
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateReplaced:
		return "replaced"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// Record is the persisted form of a refresh token. Only TokenHash is stored;
// the plaintext never leaves the Engine.
//
// FamilyID is the ID of the token that started the rotation chain. Every
// successor carries it, so a whole chain can be revoked without walking it.
type Record struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TokenHash  string     `json:"token_hash"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy string     `json:"replaced_by,omitempty"`
	Replaces   string     `json:"replaces,omitempty"`
	FamilyID   string     `json:"family_id,omitempty"`
}

// Family returns FamilyID, falling back to ID for records written before
// families were stamped.
func (r Record) Family() string {
	if r.FamilyID != "" {
		return r.FamilyID
	}
	return r.ID
}

// IsExpired reports whether the token's lifetime has elapsed at now.
func (r Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsRevoked reports whether the token was revoked.
func (r Record) IsRevoked() bool {
	return r.RevokedAt != nil
}

// IsReplaced reports whether the token has been exchanged for a successor.
func (r Record) IsReplaced() bool {
	return r.ReplacedBy != ""
}

// IsValid reports !expired && !revoked. A replaced token can still be valid
// in this sense; use Usable to decide whether it may be rotated.
func (r Record) IsValid(now time.Time) bool {
	return !r.IsExpired(now) && !r.IsRevoked()
}

// Usable reports whether the token is the live tip of its chain.
func (r Record) Usable(now time.Time) bool {
	return r.IsValid(now) && !r.IsReplaced()
}

// State classifies the token at now. Revocation wins over replacement, and
// replacement wins over expiry.
func (r Record) State(now time.Time) State {
	switch {
	case r.IsRevoked():
		return StateRevoked
	case r.IsReplaced():
		return StateReplaced
	case r.IsExpired(now):
		return StateExpired
	default:
		return StateActive
	}
}
