package credential

import (
	"errors"
	"testing"
)

func TestParseNormalizesPerKind(t *testing.T) {
	cases := []struct {
		kind Kind
		raw  string
		want string
	}{
		{KindEmail, "  Alice@Example.COM ", "alice@example.com"},
		{KindPhone, "+1 (415) 555-0100", "+14155550100"},
		{KindUsername, " Alice_01 ", "alice_01"},
	}
	for _, tc := range cases {
		id, err := Parse(tc.kind, tc.raw)
		if err != nil {
			t.Fatalf("Parse(%s, %q) error: %v", tc.kind, tc.raw, err)
		}
		if id.Value != tc.want || id.Kind != tc.kind {
			t.Fatalf("Parse(%s, %q) = %+v, want %q", tc.kind, tc.raw, id, tc.want)
		}
	}
}

func TestParseRejectsEmptyAndMalformed(t *testing.T) {
	if _, err := Parse(KindEmail, "   "); !errors.Is(err, ErrIdentifierNotSpecified) {
		t.Fatalf("expected ErrIdentifierNotSpecified, got %v", err)
	}
	bad := map[Kind]string{
		KindEmail:    "not-an-email",
		KindPhone:    "0415 555",
		KindUsername: "a!",
	}
	for kind, raw := range bad {
		if _, err := Parse(kind, raw); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("Parse(%s, %q): expected ErrInvalidIdentifier, got %v", kind, raw, err)
		}
	}
	if _, err := Parse(Kind(9), "x"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected unknown kind to be rejected, got %v", err)
	}
}

func TestCredentialCarriesExactlyOneKind(t *testing.T) {
	c, err := Phone("+44 20 7946 0958", "hash")
	if err != nil {
		t.Fatalf("Phone error: %v", err)
	}
	if c.Kind() != KindPhone || c.Identifier().Value != "+442079460958" {
		t.Fatalf("unexpected credential identifier %+v", c.Identifier())
	}
	if !c.HasPassword() || c.PasswordHash() != "hash" {
		t.Fatal("expected password hash to be carried")
	}

	federated, err := Email("bob@example.com", "")
	if err != nil {
		t.Fatalf("Email error: %v", err)
	}
	if federated.HasPassword() {
		t.Fatal("expected federated-only credential to have no password")
	}
}

func TestKindTextRoundTrip(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("username")); err != nil || k != KindUsername {
		t.Fatalf("UnmarshalText: k=%v err=%v", k, err)
	}
	if _, err := Kind(0).MarshalText(); err == nil {
		t.Fatal("expected zero kind to fail marshaling")
	}
	if !KindEmail.Verifiable() || KindUsername.Verifiable() {
		t.Fatal("unexpected Verifiable result")
	}
}
