// Package prometheus exposes the gateway's counters through a
// client_golang collector.
package prometheus
