package credential

// Credential is an identifier plus an optional password hash. It is a closed
// sum over Kind: the only way to obtain one is through the constructors
// below, so every instance carries exactly one identifier kind.
//
// An empty password hash marks a federated-only account.
type Credential struct {
	id           Identifier
	passwordHash string
}

// Email builds an email credential. The address is normalized and validated.
func Email(address, passwordHash string) (Credential, error) {
	return build(KindEmail, address, passwordHash)
}

// Phone builds a phone credential. The number must be E.164 after normalization.
func Phone(number, passwordHash string) (Credential, error) {
	return build(KindPhone, number, passwordHash)
}

// Username builds a username credential.
func Username(name, passwordHash string) (Credential, error) {
	return build(KindUsername, name, passwordHash)
}

// New builds a credential around an already parsed identifier.
func New(id Identifier, passwordHash string) (Credential, error) {
	return build(id.Kind, id.Value, passwordHash)
}

func build(kind Kind, raw, passwordHash string) (Credential, error) {
	id, err := Parse(kind, raw)
	if err != nil {
		return Credential{}, err
	}
	return Credential{id: id, passwordHash: passwordHash}, nil
}

// Identifier returns the identifier the credential is keyed by.
func (c Credential) Identifier() Identifier { return c.id }

// Kind returns the credential's identifier kind.
func (c Credential) Kind() Kind { return c.id.Kind }

// PasswordHash returns the encoded password hash, or "" for federated-only accounts.
func (c Credential) PasswordHash() string { return c.passwordHash }

// HasPassword reports whether a password hash is present.
func (c Credential) HasPassword() bool { return c.passwordHash != "" }
