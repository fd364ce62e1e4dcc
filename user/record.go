package user

import (
	"time"

	"github.com/MrEthical07/goIdentity/credential"
)

// Record is a plain User implementation shared by the bundled stores.
type Record struct {
	UserID        string    `json:"id"`
	EmailAddr     string    `json:"email,omitempty"`
	PhoneNumber   string    `json:"phone,omitempty"`
	Handle        string    `json:"username,omitempty"`
	Hash          string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRecord builds a Record for a freshly created account.
func NewRecord(id string, cred credential.Credential, now time.Time) *Record {
	r := &Record{UserID: id, Hash: cred.PasswordHash(), CreatedAt: now}
	v := cred.Identifier().Value
	switch cred.Kind() {
	case credential.KindEmail:
		r.EmailAddr = v
	case credential.KindPhone:
		r.PhoneNumber = v
	case credential.KindUsername:
		r.Handle = v
	}
	return r
}

func (r *Record) ID() string            { return r.UserID }
func (r *Record) Email() string         { return r.EmailAddr }
func (r *Record) Phone() string         { return r.PhoneNumber }
func (r *Record) Username() string      { return r.Handle }
func (r *Record) PasswordHash() string  { return r.Hash }
func (r *Record) IsEmailVerified() bool { return r.EmailVerified }
func (r *Record) IsPhoneVerified() bool { return r.PhoneVerified }

// Clone returns a copy so callers cannot mutate store-owned state.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
