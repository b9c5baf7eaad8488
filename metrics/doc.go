// Package metrics implements the server and replication metrics interfaces
// on top of github.com/VictoriaMetrics/metrics and exposes them in
// Prometheus text format.
package metrics
