// Package metrics records per-run counters and exports them as a Prometheus textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

const namespace = "history"

// Recorder collects cascade results. It implements usecase.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	tickers       *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	contributions *prometheus.CounterVec
	rows          prometheus.Counter
	duration      prometheus.Gauge
	lastRun       prometheus.Gauge
}

var _ usecase.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tickers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickers_total",
			Help:      "Tickers processed, by result.",
		}, []string{"result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_lookups_total",
			Help:      "Source queries made by the cascade, by source and status.",
		}, []string{"source", "status"}),
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_contributions_total",
			Help:      "Written tickers each source contributed rows to.",
		}, []string{"source"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Price rows written to the output.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.registry.MustRegister(r.tickers, r.lookups, r.contributions, r.rows, r.duration, r.lastRun)
	return r
}

// ObserveOutcome counts one ticker's attempts and result.
func (r *Recorder) ObserveOutcome(outcome entity.CascadeOutcome, written bool) {
	for _, a := range outcome.Attempts {
		r.lookups.WithLabelValues(a.Source.String(), a.Status.String()).Inc()
	}
	if !written {
		r.tickers.WithLabelValues("failed").Inc()
		return
	}
	r.tickers.WithLabelValues("succeeded").Inc()
	r.rows.Add(float64(len(outcome.Series)))
	for _, src := range outcome.Sources {
		r.contributions.WithLabelValues(src.String()).Inc()
	}
}

// ObserveRun records the run's wall time and completion time.
func (r *Recorder) ObserveRun(started, finished time.Time) {
	r.duration.Set(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// It is meant for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
