// Package otel publishes goHMS client metrics through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter and each latency bucket an
// Int64ObservableGauge. One callback reads the client snapshot per collection.
// Callers own the MeterProvider.
package otel
