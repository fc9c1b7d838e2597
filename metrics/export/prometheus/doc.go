// Package prometheus exposes client metrics through prometheus/client_golang.
//
// [NewCollector] adapts a [MetricsSource] to a [prometheus.Collector]; [Handler] mounts it
// on a private registry. Counter names are prefixed bedrud_client_*_total and the only
// histogram is bedrud_client_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register the collector
//     or mount the Handler.
//   - Mutate client state.
package prometheus
