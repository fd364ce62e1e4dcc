// Package code implements the one-time code mechanic shared by email
// verification, phone verification and password reset.
//
// A code is scoped by (channel, purpose, identifier value). Issuing a code
// invalidates every pending code for the same scope, only a hash of the code
// is persisted, and a successful verification consumes the code.
package code
