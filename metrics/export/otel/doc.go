// Package otel exports the gateway's counters through an OpenTelemetry
// meter.
package otel
