package credential

import "fmt"

// Kind is the closed set of identifier kinds an account can be named by.
// Adding a kind is a breaking change: every switch over Kind in the module
// must be revisited.
type Kind uint8

const (
	// KindEmail names an account by email address.
	KindEmail Kind = iota + 1
	// KindPhone names an account by E.164 phone number.
	KindPhone
	// KindUsername names an account by a chosen handle.
	KindUsername
)

// String returns the lower-case kind name used in errors and logs.
func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindUsername:
		return "username"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindEmail && k <= KindUsername
}

// Verifiable reports whether ownership of identifiers of this kind is proven
// with a one-time code. Usernames carry no ownership claim.
func (k Kind) Verifiable() bool {
	return k == KindEmail || k == KindPhone
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "email":
		return KindEmail, nil
	case "phone":
		return KindPhone, nil
	case "username":
		return KindUsername, nil
	}
	return 0, fmt.Errorf("credential: unknown identifier kind %q", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("credential: cannot marshal %s", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
