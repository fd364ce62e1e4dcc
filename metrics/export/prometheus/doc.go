// Package prometheus exposes engine counters as a prometheus.Collector.
//
// Register the [Collector] on an existing registry, or mount [Collector.Handler]
// for a standalone /metrics endpoint. Counter names are identity_*_total and
// the validation latency histogram is identity_validate_latency_seconds.
package prometheus
