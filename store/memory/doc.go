// Package memory provides process-local implementations of the identity
// stores. They are safe for concurrent use and intended for tests, demos and
// single-instance deployments.
package memory
