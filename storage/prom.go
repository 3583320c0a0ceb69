package storage

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	quorumbench "quorum-bench"
)

const metricsNamespace = "quorum_bench"

// PrometheusExporter collects sweep metrics on its own registry
type PrometheusExporter struct {
	registry *prometheus.Registry

	runsCounter      *prometheus.CounterVec
	latencyHistogram *prometheus.HistogramVec
	quantileGauge    *prometheus.GaugeVec
	durationGauge    *prometheus.GaugeVec
	cpuGauge         *prometheus.GaugeVec
	memoryGauge      *prometheus.GaugeVec
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter() *PrometheusExporter {
	exporter := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		runsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Benchmark invocations by configuration and terminal state",
			},
			[]string{"config", "state"},
		),
		latencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "latency_ms",
				Help:      "Operation latency in milliseconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 24), // 1us to ~8s
			},
			[]string{"config", "operation"},
		),
		quantileGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "latency_quantile_ms",
				Help:      "Exact latency percentiles of the last completed run",
			},
			[]string{"config", "operation", "quantile"},
		),
		durationGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of the last invocation",
			},
			[]string{"config"},
		),
		cpuGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "host_cpu_utilization",
				Help:      "Host CPU utilization percentage sampled after the run",
			},
			[]string{"config"},
		),
		memoryGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "host_memory_utilization",
				Help:      "Host memory utilization percentage sampled after the run",
			},
			[]string{"config"},
		),
	}

	exporter.registry.MustRegister(
		exporter.runsCounter,
		exporter.latencyHistogram,
		exporter.quantileGauge,
		exporter.durationGauge,
		exporter.cpuGauge,
		exporter.memoryGauge,
	)

	return exporter
}

// Registry returns the registry the exporter's metrics live in
func (pe *PrometheusExporter) Registry() *prometheus.Registry {
	return pe.registry
}

// StartServer serves /metrics on addr; it blocks like http.ListenAndServe
func (pe *PrometheusExporter) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pe.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}

// WriteTextfile dumps the current metrics in the text exposition format,
// for the node_exporter textfile collector
func (pe *PrometheusExporter) WriteTextfile(path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, pe.registry), "failed to write metrics to %s", path)
}

// RecordRun records the terminal state and duration of one invocation
func (pe *PrometheusExporter) RecordRun(key quorumbench.ConfigurationKey, state string, duration time.Duration) {
	pe.runsCounter.WithLabelValues(key.Name, state).Inc()
	pe.durationGauge.WithLabelValues(key.Name).Set(duration.Seconds())
}

// ObserveRecords feeds a run's records into the latency histogram
func (pe *PrometheusExporter) ObserveRecords(key quorumbench.ConfigurationKey, records []quorumbench.LatencyRecord) {
	for _, rec := range records {
		pe.latencyHistogram.WithLabelValues(key.Name, string(rec.Operation)).Observe(rec.LatencyMs)
	}
}

// UpdateSummary publishes the exact percentiles of a run
func (pe *PrometheusExporter) UpdateSummary(key quorumbench.ConfigurationKey, op quorumbench.Operation, summary quorumbench.PercentileSummary) {
	for q, v := range map[float64]float64{0.5: summary.P50, 0.95: summary.P95, 0.99: summary.P99} {
		pe.quantileGauge.WithLabelValues(key.Name, string(op), strconv.FormatFloat(q, 'f', -1, 64)).Set(v)
	}
}

// UpdateHostStats records the host utilization observed around a run
func (pe *PrometheusExporter) UpdateHostStats(key quorumbench.ConfigurationKey, cpuUtilization, memoryUsage float64) {
	pe.cpuGauge.WithLabelValues(key.Name).Set(cpuUtilization)
	pe.memoryGauge.WithLabelValues(key.Name).Set(memoryUsage)
}
