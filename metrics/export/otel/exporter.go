package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/metrics/export/internaldefs"
	"github.com/MrEthical07/sessiongate/session"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when there is no engine or source to read.
	ErrNilSource = errors.New("nil metrics source")
)

// Source is read once per collection cycle. *sessiongate.Engine satisfies
// it.
type Source interface {
	MetricsSnapshot() sessiongate.MetricsSnapshot
	AuditDropped() uint64
}

// StoreStater is optionally implemented by a Source. When present the
// exporter adds a gauge for the session store state, which lets a
// dashboard show how long the service has been running degraded.
type StoreStater interface {
	SessionStoreState() session.State
}

// reading is one instrument's share of a collection cycle.
type reading func(metric.Observer, sessiongate.MetricsSnapshot)

// Exporter publishes engine metrics as OTel observable instruments. It
// owns no MeterProvider; Close only detaches its callback.
type Exporter struct {
	source       Source
	readings     []reading
	registration metric.Registration
}

// NewExporter reads from engine.
func NewExporter(meter metric.Meter, engine *sessiongate.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource builds the instruments for source and registers a
// single callback covering all of them. Latency histograms are published
// as cumulative gauges named <histogram>_bucket_le_<bound> plus a
// <histogram>_count gauge, matching the Prometheus exporter's buckets.
func NewExporterFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exp := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		observables = append(observables, ins)
		exp.readings = append(exp.readings, func(o metric.Observer, s sessiongate.MetricsSnapshot) {
			o.ObserveInt64(ins, int64(s.Counters[id]))
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		ins, err := latencyGauges(meter, def)
		if err != nil {
			return nil, err
		}
		for _, g := range ins {
			observables = append(observables, g)
		}
		id := def.ID
		exp.readings = append(exp.readings, func(o metric.Observer, s sessiongate.MetricsSnapshot) {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.Histograms[id]))
			for i, v := range cumulative {
				o.ObserveInt64(ins[i], int64(v))
			}
			o.ObserveInt64(ins[len(ins)-1], int64(cumulative[len(cumulative)-1]))
		})
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped on a full dispatcher buffer."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	observables = append(observables, dropped)
	exp.readings = append(exp.readings, func(o metric.Observer, _ sessiongate.MetricsSnapshot) {
		o.ObserveInt64(dropped, int64(source.AuditDropped()))
	})

	if stater, ok := source.(StoreStater); ok {
		state, err := meter.Int64ObservableGauge(internaldefs.StoreStateName,
			metric.WithDescription(internaldefs.StoreStateHelp))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", internaldefs.StoreStateName, err)
		}
		observables = append(observables, state)
		exp.readings = append(exp.readings, func(o metric.Observer, _ sessiongate.MetricsSnapshot) {
			o.ObserveInt64(state, int64(stater.SessionStoreState()))
		})
	}

	exp.registration, err = meter.RegisterCallback(exp.collect, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return exp, nil
}

// latencyGauges returns one gauge per bucket bound followed by the count
// gauge.
func latencyGauges(meter metric.Meter, def internaldefs.HistogramDef) ([]metric.Int64ObservableGauge, error) {
	out := make([]metric.Int64ObservableGauge, 0, len(internaldefs.HistogramBoundSuffix)+1)
	for _, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative count of "+def.Name+" samples at or below the bound."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", name, err)
		}
		out = append(out, g)
	}
	name := def.Name + "_count"
	g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Total "+def.Name+" samples."))
	if err != nil {
		return nil, fmt.Errorf("gauge %s: %w", name, err)
	}
	return append(out, g), nil
}

// collect takes one snapshot per cycle so every counter in an export
// comes from the same instant.
func (e *Exporter) collect(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, r := range e.readings {
		r(o, snapshot)
	}
	return nil
}

// Close detaches the callback. The MeterProvider is left to the caller.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
