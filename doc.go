// Package goIdentity is an embeddable identity core. It authenticates users
// by password or federated identity, issues and rotates session tokens,
// proves ownership of email addresses and phone numbers with one-time
// codes, and links federated identities to existing local accounts.
//
// Build an [Engine] with [New]; every Engine method is safe for concurrent
// use after [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface: [Engine], [Builder], [Config], the
// error taxonomy, and value types such as [TokenPair]. Flow orchestration,
// throttling and audit dispatch live under internal/. Persistence and
// delivery are collaborators behind the interfaces in user, refresh, code,
// linking and delivery; the store/ and delivery/ sub-packages hold
// reference implementations.
//
// # What this package must NOT do
//
//   - Speak HTTP or any other wire protocol. See middleware and
//     examples/http-minimal for one way to front it.
//   - Log or return plaintext codes, tokens or passwords.
//   - Own goroutines other than the optional audit dispatcher.
//
// # Errors
//
// Kind-specific errors such as [ErrEmailAlreadyRegistered] are [*KindError]
// values. errors.Is matches both the variant and its family
// ([ErrAlreadyRegistered]), and errors.As recovers the [Kind].
package goIdentity
