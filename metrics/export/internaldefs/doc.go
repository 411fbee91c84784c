// Package internaldefs holds the metric names and bucket bounds shared by
// the exporter packages.
//
// The Prometheus and OTel exporters both range over CounterDefs and
// HistogramDefs, so a rename here changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
