// Package delivery defines how one-time codes and confirmations leave the
// identity core.
//
// The core only depends on Sender. Router fans messages out per channel,
// Breaker guards a flaky transport with a circuit breaker, and LogSender and
// Recorder cover development and tests. Concrete transports live in the
// mail and kafka subpackages.
package delivery
