// Package metrics exposes the outcome of a generation run as Prometheus
// metrics. Every run gets its own registry; nothing is registered globally.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vk/projforge/internal/builder"
	"github.com/vk/projforge/internal/errs"
)

// Recorder holds the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	Descriptors       *prometheus.GaugeVec
	Targets           *prometheus.GaugeVec
	Files             *prometheus.CounterVec
	UnusedTargets     *prometheus.GaugeVec
	DescriptorsFailed *prometheus.CounterVec
	PhaseDuration     *prometheus.HistogramVec
	LastRunEnd        prometheus.Gauge
}

// New creates a Recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		Descriptors: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "projforge_descriptors",
				Help: "Number of descriptor types by kind and final state",
			},
			[]string{"kind", "state"},
		),
		Targets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "projforge_descriptor_targets",
				Help: "Number of targets a descriptor type was configured for",
			},
			[]string{"descriptor"},
		),
		Files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projforge_files_total",
				Help: "Number of generated files, by whether they were written or already up to date",
			},
			[]string{"result"},
		),
		UnusedTargets: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "projforge_unused_targets",
				Help: "Number of merged targets whose configurations were never used",
			},
			[]string{"descriptor"},
		),
		DescriptorsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projforge_descriptor_errors_total",
				Help: "Number of errors captured per descriptor type",
			},
			[]string{"descriptor", "error_type"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projforge_phase_duration_seconds",
				Help:    "Duration of the build, link and generate phases in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"phase"},
		),
		LastRunEnd: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "projforge_last_run_end_timestamp",
				Help: "Unix timestamp of when the run ended",
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records a finished run.
func (r *Recorder) Observe(report *builder.Report, end time.Time) {
	for _, p := range report.Phases {
		r.PhaseDuration.WithLabelValues(p.Name).Observe(p.Duration.Seconds())
	}
	for _, o := range report.Outputs {
		r.Descriptors.WithLabelValues(o.Kind, o.State().String()).Inc()
		r.Targets.WithLabelValues(o.Descriptor).Set(float64(o.Targets()))
		r.Files.WithLabelValues("generated").Add(float64(len(o.Generated())))
		r.Files.WithLabelValues("skipped").Add(float64(len(o.Skipped())))
		if unused := o.Unused(); len(unused) > 0 {
			r.UnusedTargets.WithLabelValues(o.Descriptor).Set(float64(len(unused)))
		}
		for _, err := range o.Errors() {
			r.DescriptorsFailed.WithLabelValues(o.Descriptor, errorType(err)).Inc()
		}
	}
	r.LastRunEnd.Set(float64(end.Unix()))
}

// WriteFile writes the registry in the text exposition format, for the node
// exporter's textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errs.IsInternal(err):
		return "internal"
	case errors.Is(err, errs.ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}
