// Package metrics exposes Prometheus metrics for parsing and issuance.
package metrics

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private Prometheus registry and implements core.Recorder.
type Registry struct {
	reg *prometheus.Registry

	Submissions        *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	RowsParsed         prometheus.Counter
	ParseWarnings      prometheus.Counter
	ParseFailures      prometheus.Counter
	ActiveBatches      prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facturador_submissions_total",
		Help: "Issuance attempts by final row status.",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "facturador_submission_duration_seconds",
		Help:    "Time spent waiting on the issuance service per row.",
		Buckets: prometheus.DefBuckets,
	})
	rowsParsed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facturador_rows_parsed_total",
		Help: "Invoice rows produced by successful parses.",
	})
	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facturador_parse_warnings_total",
		Help: "Warnings emitted while parsing files.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "facturador_parse_failures_total",
		Help: "Files rejected with a fatal parse error.",
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "facturador_active_batches",
		Help: "Batches currently submitting.",
	})

	r.MustRegister(submissions, duration, rowsParsed, warnings, failures, active)
	return &Registry{
		reg:                r,
		Submissions:        submissions,
		SubmissionDuration: duration,
		RowsParsed:         rowsParsed,
		ParseWarnings:      warnings,
		ParseFailures:      failures,
		ActiveBatches:      active,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) RecordAttempt(_ context.Context, a core.Attempt) {
	r.Submissions.WithLabelValues(string(a.Status)).Inc()
	r.SubmissionDuration.Observe(a.Duration.Seconds())
}

func (r *Registry) RecordParse(_ context.Context, rows, warnings int, err error) {
	if err != nil {
		r.ParseFailures.Inc()
		return
	}
	r.RowsParsed.Add(float64(rows))
	r.ParseWarnings.Add(float64(warnings))
}

func (r *Registry) BatchStarted()  { r.ActiveBatches.Inc() }
func (r *Registry) BatchFinished() { r.ActiveBatches.Dec() }
