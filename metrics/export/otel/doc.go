// Package otel binds client metrics to OpenTelemetry observable instruments.
//
// [NewExporter] registers an Int64ObservableCounter per client counter and an
// Int64ObservableGauge per histogram bucket. One callback reads the snapshot on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
