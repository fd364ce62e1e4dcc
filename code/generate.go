package code

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet excludes characters that are easily confused when read aloud or
// typed from an SMS: 0/O and 1/I/L.
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const (
	MinLength = 4
	MaxLength = 16
)

// Generate returns a random code of length characters drawn from Alphabet.
func Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("code: length must be within [%d, %d]", MinLength, MaxLength)
	}

	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Canonical normalizes user input: upper case, no spaces or dashes.
func Canonical(submitted string) string {
	return strings.ToUpper(canonicalReplacer.Replace(strings.TrimSpace(submitted)))
}

var canonicalReplacer = strings.NewReplacer(" ", "", "-", "")

// Hash binds a code to its scope so that the same characters issued for two
// identifiers or purposes never produce the same stored hash.
func Hash(ch Channel, p Purpose, identifierValue, code string) string {
	h := sha256.New()
	h.Write([]byte(ch.String()))
	h.Write([]byte{0})
	h.Write([]byte(p.String()))
	h.Write([]byte{0})
	h.Write([]byte(identifierValue))
	h.Write([]byte{0})
	h.Write([]byte(Canonical(code)))
	return hex.EncodeToString(h.Sum(nil))
}
