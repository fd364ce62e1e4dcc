// Package rate implements the Redis fixed-window throttles used by the
// identity engine.
//
// # Window semantics
//
// Each counter is INCR plus EXPIRE on the first hit of a window. Keys are:
//   - <prefix>:rl:login:<kind>:<value> for failed logins per identifier
//   - <prefix>:rl:code:<purpose>:<kind>:<value> for code issuance
//
// # Failure mode
//
// Throttling is best effort. When Redis cannot be reached the limiter logs a
// warning and lets the request through.
package rate
