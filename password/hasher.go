package password

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPassword is returned when hashing an empty secret.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned when the secret exceeds the hasher's byte limit.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash is returned when an encoded hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned when no hasher recognises an encoded hash.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// DefaultMaxPasswordBytes bounds the work an attacker can force per guess.
const DefaultMaxPasswordBytes = 1024

// Hasher hashes and verifies passwords. Verify must compare in constant time.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}

// Upgrader is implemented by hashers that can tell when a stored hash was
// produced with weaker parameters than the current ones.
type Upgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}

// Chain hashes with its first member and verifies with whichever member
// recognises the encoded hash. It lets a deployment move from bcrypt to
// argon2id without invalidating stored passwords.
type Chain struct {
	primary   Hasher
	fallbacks []Hasher
}

// NewChain returns a Chain that hashes with primary.
func NewChain(primary Hasher, fallbacks ...Hasher) *Chain {
	return &Chain{primary: primary, fallbacks: fallbacks}
}

// Hash delegates to the primary hasher.
func (c *Chain) Hash(plaintext string) (string, error) {
	return c.primary.Hash(plaintext)
}

// Verify tries the primary hasher first, then each fallback, and stops at the
// first hasher that understands the format.
func (c *Chain) Verify(plaintext, encoded string) (bool, error) {
	for _, h := range append([]Hasher{c.primary}, c.fallbacks...) {
		ok, err := h.Verify(plaintext, encoded)
		if errors.Is(err, ErrUnsupportedHash) {
			continue
		}
		return ok, err
	}
	return false, ErrUnsupportedHash
}

// NeedsUpgrade reports true for any hash the primary did not produce.
func (c *Chain) NeedsUpgrade(encoded string) (bool, error) {
	if u, ok := c.primary.(Upgrader); ok {
		needs, err := u.NeedsUpgrade(encoded)
		if errors.Is(err, ErrUnsupportedHash) {
			return true, nil
		}
		return needs, err
	}
	return false, nil
}

func checkLength(plaintext string, max int) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if max <= 0 {
		max = DefaultMaxPasswordBytes
	}
	if len(plaintext) > max {
		return ErrPasswordTooLong
	}
	return nil
}

func hasPrefix(encoded string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}
