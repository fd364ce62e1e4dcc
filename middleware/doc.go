// Package middleware adapts the identity engine to net/http.
//
// [Guard] validates bearer access tokens and stores the [goIdentity.AuthResult]
// in the request context; [RequireScope] narrows a route to one scope.
// [ClientContext] records the caller's IP and User-Agent for audit events.
//
// Validation is stateless, so these handlers never touch a store.
package middleware
