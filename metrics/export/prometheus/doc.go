// Package prometheus renders sessiongate engine metrics in Prometheus text
// exposition format.
//
// Counters are named sessiongate_*_total. The authenticate latency histogram
// (sessiongate_authenticate_latency_seconds) appears only when latency
// histograms are enabled on the engine.
//
// # What this package must NOT do
//
//   - Register into a global Prometheus registry. Callers mount Handler.
//   - Mutate engine state.
package prometheus
