// Package prometheus provides Prometheus collectors for goPasskey metrics.
//
// [NewPrometheusExporter] accepts a [goPasskey.Engine] and exposes an [http.Handler]
// that renders all goPasskey counters and histograms in Prometheus text exposition
// format. Counter names are prefixed gopasskey_*_total; the single histogram is
// gopasskey_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry: callers mount the Handler.
//   - Mutate engine state.
package prometheus
