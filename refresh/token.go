package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// MinTokenBytes is the smallest accepted amount of token entropy (256 bits).
const MinTokenBytes = 32

// NewToken returns a base64url encoded random token of n bytes.
func NewToken(n int) (string, error) {
	if n < MinTokenBytes {
		return "", errors.New("refresh: token entropy below 256 bits")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex sha256 of a presented token. This is the only
// form in which tokens are persisted or looked up.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
