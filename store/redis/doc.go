// Package redis stores refresh tokens, one-time codes and linking states in
// Redis.
//
// Conditional writes (refresh rotation, attempt counting, code consumption)
// run as single Lua scripts or single commands, so concurrent callers on any
// number of processes observe one winner. Linking state updates use
// WATCH/MULTI optimistic transactions.
//
// Scripts touch several keys computed from one record, so the stores are
// meant for a single primary (standalone or Sentinel), not Redis Cluster.
package redis
