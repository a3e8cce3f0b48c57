// Package metrics declares the Prometheus metrics exported by the media
// converter and the small helpers that keep them populated.
//
// Metrics are registered with promauto at package init and exposed by the
// metrics server on METRICS_PORT. [InitializeMetrics] pre-creates every
// expected label combination so dashboards do not show gaps before the
// first conversion.
//
// The [Collector] polls a [StatsProvider] (the session) and mirrors working
// set sizes, staged engine paths and workspace tree counts into gauges.
// [NewFilesystemObserver] adapts sandbox filesystem events into counters
// without the filesystem package importing this one.
package metrics
