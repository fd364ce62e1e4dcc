// Package flows contains pure-function orchestrators for every Engine
// operation.
//
// Each flow function (RunLogin, RunRegister, RunRefresh, etc.) accepts a typed
// dependency struct and returns results without side effects beyond those
// dependencies. The root Engine builds the dependency structs once and
// delegates to the matching flow, so the Engine type stays thin and every
// flow can be tested with plain function fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls into the refresh, code and linking engines,
// the user store, the password hasher, delivery, rate limiting, audit and
// metrics. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
