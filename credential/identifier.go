package credential

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrIdentifierNotSpecified is returned when no identifier value was supplied.
	ErrIdentifierNotSpecified = errors.New("identifier not specified")
	// ErrInvalidIdentifier is returned when a value is malformed for its kind.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Identifier is an immutable, comparable handle naming an account. Values
// built through Parse are normalized and safe to use as lookup keys.
type Identifier struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// String renders the identifier as kind:value.
func (i Identifier) String() string {
	return i.Kind.String() + ":" + i.Value
}

// IsZero reports whether the identifier is unset.
func (i Identifier) IsZero() bool {
	return i.Kind == 0 && i.Value == ""
}

// EmailIdentifier returns the normalized email identifier for raw.
func EmailIdentifier(raw string) (Identifier, error) { return Parse(KindEmail, raw) }

// PhoneIdentifier returns the normalized phone identifier for raw.
func PhoneIdentifier(raw string) (Identifier, error) { return Parse(KindPhone, raw) }

// UsernameIdentifier returns the normalized username identifier for raw.
func UsernameIdentifier(raw string) (Identifier, error) { return Parse(KindUsername, raw) }

// Parse normalizes raw for kind and validates it.
//
// Emails are trimmed and lower-cased. Phones lose spaces, dashes, dots and
// parentheses and must then be E.164. Usernames are trimmed, lower-cased and
// limited to 3..32 characters of [a-z0-9._-].
func Parse(kind Kind, raw string) (Identifier, error) {
	if !kind.Valid() {
		return Identifier{}, fmt.Errorf("%w: %s", ErrInvalidIdentifier, kind)
	}
	value := Normalize(kind, raw)
	if value == "" {
		return Identifier{}, ErrIdentifierNotSpecified
	}
	if err := validate().Var(value, tags[kind]); err != nil {
		return Identifier{}, fmt.Errorf("%w: %s", ErrInvalidIdentifier, kind)
	}
	return Identifier{Kind: kind, Value: value}, nil
}

// Normalize applies the canonical form for kind without validating it.
func Normalize(kind Kind, raw string) string {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindEmail, KindUsername:
		return strings.ToLower(raw)
	case KindPhone:
		return phoneReplacer.Replace(raw)
	default:
		return raw
	}
}

var phoneReplacer = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

var tags = map[Kind]string{
	KindEmail:    "required,max=254,email",
	KindPhone:    "required,e164",
	KindUsername: "required,min=3,max=32,username",
}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func validate() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			for _, r := range fl.Field().String() {
				switch {
				case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
				default:
					return false
				}
			}
			return true
		})
		validatorInst = v
	})
	return validatorInst
}
