// internal/metrics/metrics.go
// Package metrics exposes benchmark results as Prometheus gauges and writes
// them in the node-exporter text file format.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwiater/microbench/internal/benchmark"
	"github.com/mwiater/microbench/internal/logging"
)

const DefaultNamespace = "microbench"

// Recorder collects results on a private registry so repeated recorders (and
// tests) never collide with the default one.
type Recorder struct {
	mutex    sync.Mutex
	registry *prometheus.Registry

	summary           *prometheus.GaugeVec
	variance          *prometheus.GaugeVec
	batches           *prometheus.GaugeVec
	runs              *prometheus.GaugeVec
	calibrationFactor *prometheus.GaugeVec
	givenUp           *prometheus.CounterVec
}

var (
	instance *Recorder
	once     sync.Once
)

// GetInstance returns the process-wide recorder.
func GetInstance() *Recorder {
	once.Do(func() {
		instance = NewRecorder(DefaultNamespace)
	})
	return instance
}

func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		summary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "summary_milliseconds",
			Help:      "Normalised benchmark summary statistics in milliseconds.",
		}, []string{"workload", "stat"}),
		variance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "variance_milliseconds_squared",
			Help:      "Sample variance of the normalised trial durations.",
		}, []string{"workload"}),
		batches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches",
			Help:      "Batches sampled before the run terminated.",
		}, []string{"workload"}),
		runs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs",
			Help:      "Trials in the final batch.",
		}, []string{"workload"}),
		calibrationFactor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_factor_milliseconds",
			Help:      "Milliseconds per raw timer tick.",
		}, []string{"timer"}),
		givenUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "given_up_total",
			Help:      "Runs that stopped without reaching stability.",
		}, []string{"workload"}),
	}
	r.registry.MustRegister(r.summary, r.variance, r.batches, r.runs, r.calibrationFactor, r.givenUp)
	return r
}

// Registry is exposed for scraping and tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Record sets the gauges for one result. A later result for the same workload
// replaces the earlier values.
func (r *Recorder) Record(res *benchmark.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s := res.Summary
	for stat, v := range map[string]float64{
		"min":    s.Min,
		"q1":     s.Q1,
		"median": s.Median,
		"q3":     s.Q3,
		"max":    s.Max,
		"mean":   s.Mean,
		"stddev": s.StdDev(),
	} {
		r.summary.WithLabelValues(res.Workload, stat).Set(v)
	}
	r.variance.WithLabelValues(res.Workload).Set(s.Variance)
	r.batches.WithLabelValues(res.Workload).Set(float64(res.Batches))
	r.runs.WithLabelValues(res.Workload).Set(float64(res.FinalRuns))
	r.calibrationFactor.WithLabelValues(res.Timer).Set(res.Factor)
	if res.GivenUp() {
		r.givenUp.WithLabelValues(res.Workload).Inc()
	}
	return nil
}

// WriteTextfile writes every recorded metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	logging.LogEvent("[METRICS] wrote %s", path)
	return nil
}
