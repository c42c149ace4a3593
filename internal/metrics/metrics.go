// Package metrics wires the scheduler loop's counters and gauges into a
// Prometheus registry, exposing this system's process/tick vocabulary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder exposes the scheduler loop's observable counters.
type Recorder struct {
	registry *prometheus.Registry

	runningJobs      prometheus.Gauge
	launchCounter    *prometheus.CounterVec
	completionCounter *prometheus.CounterVec
	tickDuration     prometheus.Histogram
	auditFailures    *prometheus.CounterVec
}

// NewRecorder builds a Recorder with its own registry so metrics from
// separate batch invocations never collide when scraped side by side.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		runningJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "koyomi_running_processes",
			Help: "Number of processes currently RUNNING in the batch.",
		}),
		launchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "koyomi_process_launch_total",
			Help: "Total number of process launches attempted.",
		}, []string{"process_name"}),
		completionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "koyomi_process_completion_total",
			Help: "Total number of process completions, by final status.",
		}, []string{"process_name", "status"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "koyomi_scheduler_tick_seconds",
			Help:    "Wall-clock duration of one scheduler loop tick.",
			Buckets: prometheus.DefBuckets,
		}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "koyomi_audit_table_failure_total",
			Help: "Total audit table update failures, by criticality.",
		}, []string{"criticality"}),
	}

	registry.MustRegister(r.runningJobs, r.launchCounter, r.completionCounter, r.tickDuration, r.auditFailures)
	return r
}

// Registry returns the underlying Prometheus registry for a metrics
// endpoint to serve.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// SetRunning updates the running-process gauge.
func (r *Recorder) SetRunning(count int) { r.runningJobs.Set(float64(count)) }

// RecordLaunch increments the launch counter for processName.
func (r *Recorder) RecordLaunch(processName string) {
	r.launchCounter.WithLabelValues(processName).Inc()
}

// RecordCompletion increments the completion counter for processName's
// final status.
func (r *Recorder) RecordCompletion(processName, status string) {
	r.completionCounter.WithLabelValues(processName, status).Inc()
}

// ObserveTick records how long one scheduler tick took, in seconds.
func (r *Recorder) ObserveTick(seconds float64) {
	r.tickDuration.Observe(seconds)
}

// RecordAuditFailure increments the audit-failure counter for the given
// criticality ("WARN" or "ERROR").
func (r *Recorder) RecordAuditFailure(criticality string) {
	r.auditFailures.WithLabelValues(criticality).Inc()
}
