// Package metrics records extraction and reconstruction counters in a
// private prometheus registry that can be dumped to a textfile for the node
// exporter's textfile collector.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder holds the crxsrc collectors.
type Recorder struct {
	reg *prometheus.Registry

	entriesTotal       *prometheus.CounterVec
	bytesWritten       prometheus.Counter
	normalizeFailures  *prometheus.CounterVec
	cacheHits          prometheus.Counter
	modulesTotal       prometheus.Counter
	conflictsTotal     prometheus.Counter
	extractionDuration *prometheus.HistogramVec
	lastRunTimestamp   prometheus.Gauge
	artifactsFailed    prometheus.Counter
}

// New returns a recorder with a fresh registry and the Go runtime collector.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	r := &Recorder{
		reg: reg,
		entriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crxsrc_entries_extracted_total",
			Help: "Archive entries written to disk by extraction mode",
		}, []string{"mode"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crxsrc_bytes_written_total",
			Help: "Bytes written to output directories",
		}),
		normalizeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crxsrc_normalize_failures_total",
			Help: "Entries kept raw because normalization failed, by normalizer",
		}, []string{"normalizer"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crxsrc_normalize_cache_hits_total",
			Help: "Normalized outputs served from the cache",
		}),
		modulesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crxsrc_modules_reconstructed_total",
			Help: "Module files emitted by bundle reconstruction",
		}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crxsrc_module_name_conflicts_total",
			Help: "Module ids whose filename was overwritten by a later dependency table",
		}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crxsrc_extraction_duration_seconds",
			Help:    "Wall time of one extraction run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crxsrc_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed run",
		}),
		artifactsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crxsrc_artifacts_failed_total",
			Help: "Artifacts whose extraction returned an error",
		}),
	}

	reg.MustRegister(
		r.entriesTotal,
		r.bytesWritten,
		r.normalizeFailures,
		r.cacheHits,
		r.modulesTotal,
		r.conflictsTotal,
		r.extractionDuration,
		r.lastRunTimestamp,
		r.artifactsFailed,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) EntryExtracted(mode string, bytes int64) {
	if r == nil {
		return
	}
	r.entriesTotal.WithLabelValues(mode).Inc()
	r.bytesWritten.Add(float64(bytes))
}

func (r *Recorder) NormalizeFailed(normalizer string) {
	if r == nil {
		return
	}
	r.normalizeFailures.WithLabelValues(normalizer).Inc()
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

func (r *Recorder) ModulesWritten(n int, bytes int64) {
	if r == nil {
		return
	}
	r.modulesTotal.Add(float64(n))
	r.bytesWritten.Add(float64(bytes))
}

func (r *Recorder) Conflicts(n int) {
	if r == nil {
		return
	}
	r.conflictsTotal.Add(float64(n))
}

// ObserveRun records the duration of a run and whether it failed.
func (r *Recorder) ObserveRun(mode string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.extractionDuration.WithLabelValues(mode).Observe(d.Seconds())
	r.lastRunTimestamp.SetToCurrentTime()
	if err != nil {
		r.artifactsFailed.Inc()
	}
}

// WriteFile writes the registry in text exposition format to path. The file
// is replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
