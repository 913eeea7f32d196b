package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects backup run metrics in its own registry so it can be
// served over HTTP in daemon mode or dumped to a node-exporter textfile after
// a one-shot run.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	uploadedBytes     prometheus.Counter
	lastSuccess       prometheus.Gauge
	lastArchiveBytes  prometheus.Gauge
	prunedTotal       *prometheus.CounterVec
	retainedArchives  prometheus.Gauge
	placeholdersTotal prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stashd_runs_total",
				Help: "Total number of backup runs by outcome",
			},
			[]string{"success"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stashd_run_duration_seconds",
				Help:    "Duration of complete backup runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"success"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stashd_stage_duration_seconds",
				Help:    "Duration of individual run stages in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage", "success"},
		),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stashd_uploaded_bytes_total",
			Help: "Total bytes of archives uploaded to the remote store",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stashd_last_success_timestamp_seconds",
			Help: "Unix time of the last successful backup run",
		}),
		lastArchiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stashd_last_archive_bytes",
			Help: "Size of the most recently uploaded archive",
		}),
		prunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stashd_pruned_archives_total",
				Help: "Old archives processed by the retention pruner by outcome",
			},
			[]string{"outcome"},
		),
		retainedArchives: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stashd_retained_archives",
			Help: "Archives inside the retention window after the last prune",
		}),
		placeholdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stashd_placeholder_entries_total",
			Help: "Package entries substituted with placeholders because the source was absent",
		}),
	}

	r.registry.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.stageDuration,
		r.uploadedBytes,
		r.lastSuccess,
		r.lastArchiveBytes,
		r.prunedTotal,
		r.retainedArchives,
		r.placeholdersTotal,
	)

	return r
}

func (r *Recorder) RecordRun(success bool, duration time.Duration) {
	label := strconv.FormatBool(success)
	r.runsTotal.WithLabelValues(label).Inc()
	r.runDuration.WithLabelValues(label).Observe(duration.Seconds())
	if success {
		r.lastSuccess.SetToCurrentTime()
	}
}

func (r *Recorder) RecordStage(stage string, success bool, duration time.Duration) {
	r.stageDuration.WithLabelValues(stage, strconv.FormatBool(success)).Observe(duration.Seconds())
}

func (r *Recorder) RecordUpload(size int64) {
	r.uploadedBytes.Add(float64(size))
	r.lastArchiveBytes.Set(float64(size))
}

func (r *Recorder) RecordPlaceholders(n int) {
	r.placeholdersTotal.Add(float64(n))
}

func (r *Recorder) RecordPrune(deleted, failed, retained int) {
	r.prunedTotal.WithLabelValues("deleted").Add(float64(deleted))
	r.prunedTotal.WithLabelValues("failed").Add(float64(failed))
	r.retainedArchives.Set(float64(retained))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics in the text exposition format,
// replacing path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
