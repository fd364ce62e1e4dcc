package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
}

func newFastArgon2(t *testing.T, maxBytes int) *Argon2 {
	t.Helper()
	cfg := fastConfig()
	cfg.MaxPasswordBytes = maxBytes
	a, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return a
}

func TestArgon2RoundTripAndUpgrade(t *testing.T) {
	a := newFastArgon2(t, 0)
	encoded, err := a.Hash("hunter2")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	if ok, err := a.Verify("hunter2", encoded); err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
	if ok, _ := a.Verify("hunter3", encoded); ok {
		t.Fatal("wrong password verified")
	}

	stronger := fastConfig()
	stronger.Time = 2
	b, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	if needs, err := b.NeedsUpgrade(encoded); err != nil || !needs {
		t.Fatalf("expected an upgrade after raising the time cost: needs=%v err=%v", needs, err)
	}
	if needs, err := a.NeedsUpgrade(encoded); err != nil || needs {
		t.Fatalf("expected no upgrade at the same cost: needs=%v err=%v", needs, err)
	}
}

// Minimum length is enforced by the engine's password policy, so the hasher
// takes anything non-empty up to its byte ceiling.
func TestArgon2LengthBounds(t *testing.T) {
	tests := []struct {
		name     string
		maxBytes int
		password string
		want     error
	}{
		{name: "single byte", maxBytes: 0, password: "x"},
		{name: "empty", maxBytes: 0, password: "", want: ErrEmptyPassword},
		{name: "at ceiling", maxBytes: 32, password: strings.Repeat("a", 32)},
		{name: "over ceiling", maxBytes: 32, password: strings.Repeat("a", 33), want: ErrPasswordTooLong},
		{name: "default ceiling", maxBytes: 0, password: strings.Repeat("a", DefaultMaxPasswordBytes)},
		{name: "over default ceiling", maxBytes: 0, password: strings.Repeat("a", DefaultMaxPasswordBytes+1), want: ErrPasswordTooLong},
		{name: "multibyte counted in bytes", maxBytes: 4, password: "éé€", want: ErrPasswordTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newFastArgon2(t, tc.maxBytes)
			_, err := a.Hash(tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestArgon2VerifyRejectsOverlongBeforeWork(t *testing.T) {
	a := newFastArgon2(t, 16)
	encoded, err := a.Hash("short-enough")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := a.Verify(strings.Repeat("z", 17), encoded); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestArgon2ForeignEncodings(t *testing.T) {
	a := newFastArgon2(t, 0)
	encoded, err := a.Hash("pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	for _, foreign := range []string{
		"$2a$04$abcdefghijklmnopqrstuu0123456789012345678901234567890",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"plaintext",
	} {
		if _, err := a.Verify("pw", foreign); !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("Verify(%q): expected ErrUnsupportedHash, got %v", foreign, err)
		}
		if _, err := a.NeedsUpgrade(foreign); !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("NeedsUpgrade(%q): expected ErrUnsupportedHash, got %v", foreign, err)
		}
	}

	if _, err := a.Verify("pw", strings.Replace(encoded, "$v=19$", "$v=16$", 1)); err == nil {
		t.Fatal("expected an old argon2 version to be refused")
	}
}
