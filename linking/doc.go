// Package linking reconciles a federated identity against existing local
// accounts.
//
// A reconciliation that cannot be settled immediately is parked in a
// session-keyed, TTL-bound State. The caller drives it forward with Select
// and VerifyAndComplete, passing the session id explicitly on every call.
// An ambiguous match is never linked without the candidate's password.
package linking
