// Package credential models the typed identity handles (email, phone,
// username) and the password-bearing credentials built from them.
package credential
