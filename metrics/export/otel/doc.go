// Package otel publishes engine counters as OpenTelemetry observable
// instruments.
//
// [NewExporter] creates one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket, all fed by a single callback that
// reads [goIdentity.Engine.MetricsSnapshot]. The caller owns the MeterProvider.
package otel
