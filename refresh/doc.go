// Package refresh implements the stateful half of the token lifecycle:
// opaque rotating refresh tokens that are hashed at rest.
//
// # Lifecycle
//
// A token is Active when issued. Rotating it creates a successor and marks
// it Replaced; the pair is linked both ways (ReplacedBy forward, Replaces
// back). Revocation is terminal and idempotent.
//
// Presenting anything other than the live tip of a chain (an expired, revoked
// or already replaced token) is treated as theft: the whole chain reachable
// from the presented token is revoked. Every token carries the FamilyID of
// the chain's first token, and the family is revoked in one store call so
// the tip dies even when the chain is longer than the traversal limit.
//
// # Architecture boundaries
//
// This package owns token generation, hashing, the rotation state machine and
// chain traversal. Persistence is delegated to a [Store]; the store must make
// [Store.Rotate] a single conditional operation.
package refresh
