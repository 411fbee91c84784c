// Package otel publishes sessiongate counters through OpenTelemetry.
//
// The engine keeps its own lock-free counters, so nothing here records on
// the request path. [NewExporter] declares observable instruments and a
// single callback that snapshots the engine whenever the reader collects.
// Login, refresh, logout and authenticate outcomes become counters. The
// authenticate latency histogram becomes cumulative bucket gauges. When the
// source reports the session store state, a gauge tracks whether the
// allowlist is connected or the service is running degraded.
//
// [NewPushProvider] builds a MeterProvider that pushes over OTLP gRPC for
// deployments without a Prometheus scrape. Callers own the provider and
// shut it down; the exporter never installs a global one.
package otel
