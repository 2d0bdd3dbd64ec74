// Package metrics records batch run statistics in a private Prometheus
// registry that can be dumped in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"fundscrape/internal/extractor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fundscrape"

// Row outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder collects metrics for one run.
type Recorder struct {
	registry *prometheus.Registry

	rows        *prometheus.CounterVec
	fields      *prometheus.CounterVec
	attempts    prometheus.Counter
	recycles    prometheus.Counter
	checkpoints prometheus.Counter
	rowDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

// New creates a Recorder with its own registry, so several runs (or tests)
// never collide on the default one.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed, by outcome.",
		}, []string{"outcome"}),
		fields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_total",
			Help:      "Extracted fields, by field and status (found, not_found, error).",
		}, []string{"field", "status"}),
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Page load attempts, retries included.",
		}),
		recycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_recycles_total",
			Help:      "Browser sessions replaced during the run.",
		}),
		checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Intermediate saves of the output workbook.",
		}),
		rowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Time spent scraping one row.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Row records one finished row.
func (r *Recorder) Row(res extractor.Result, attempts int, took time.Duration) {
	outcome := OutcomeOK
	if res.Get(extractor.Category) == extractor.Error {
		outcome = OutcomeError
	}
	r.rows.WithLabelValues(outcome).Inc()
	r.attempts.Add(float64(attempts))
	r.rowDuration.Observe(took.Seconds())

	for _, f := range extractor.Fields {
		r.fields.WithLabelValues(string(f), fieldStatus(res.Get(f))).Inc()
	}
}

func (r *Recorder) Recycle()    { r.recycles.Inc() }
func (r *Recorder) Checkpoint() { r.checkpoints.Inc() }

// WriteFile stamps the finish time and writes every metric to path.
func (r *Recorder) WriteFile(path string) error {
	r.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func fieldStatus(v string) string {
	switch v {
	case extractor.Error:
		return "error"
	case extractor.NotFound:
		return "not_found"
	default:
		return "found"
	}
}
