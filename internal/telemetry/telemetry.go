// Package telemetry instruments task dispatch with Prometheus metrics.
// Each Telemetry owns its registry, so several may coexist in one process.
package telemetry

import (
	"net/http"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edgebench"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	TasksTotal      *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	OffloadsTotal   *prometheus.CounterVec
	AdmissionCPU    prometheus.Gauge
	ActiveScenario  *prometheus.GaugeVec
}

type Telemetry struct {
	reg     *prometheus.Registry
	Metrics *Metrics
}

func New() *Telemetry {
	reg := prometheus.NewRegistry()
	return &Telemetry{
		reg:     reg,
		Metrics: initMetrics(promauto.With(reg)),
	}
}

func initMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP calls to supervisor and peers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "result"}),
		TasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Dispatched tasks by scenario, execution location and result",
		}, []string{"scenario", "location", "result"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_response_seconds",
			Help:      "Response time of successful tasks",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"scenario", "location"}),
		OffloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_shedding_events_total",
			Help:      "Tasks offloaded to a peer because of supervisor load",
		}, []string{"scenario"}),
		AdmissionCPU: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admission_cpu_percent",
			Help:      "Last CPU sample used for an offload decision",
		}),
		ActiveScenario: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_active",
			Help:      "1 while a scenario is running",
		}, []string{"scenario"}),
	}
}

// ObserveRequest implements client.Observer.
func (t *Telemetry) ObserveRequest(path string, elapsed time.Duration, result string) {
	t.Metrics.RequestDuration.WithLabelValues(path, result).Observe(elapsed.Seconds())
}

// ObserveTask records one dispatched task outcome.
func (t *Telemetry) ObserveTask(scenario string, out client.Outcome) {
	result := ResultSuccess
	if !out.Success {
		result = ResultFailure
	}
	t.Metrics.TasksTotal.WithLabelValues(scenario, out.Location, result).Inc()
	if out.Success {
		t.Metrics.TaskDuration.WithLabelValues(scenario, out.Location).Observe(out.ResponseTime / 1000)
	}
}

func (t *Telemetry) ObserveOffload(scenario string) {
	t.Metrics.OffloadsTotal.WithLabelValues(scenario).Inc()
}

func (t *Telemetry) SetAdmissionCPU(percent float64) {
	t.Metrics.AdmissionCPU.Set(percent)
}

// ScenarioStarted marks a scenario active and returns the func that clears it.
func (t *Telemetry) ScenarioStarted(scenario string) func() {
	g := t.Metrics.ActiveScenario.WithLabelValues(scenario)
	g.Set(1)
	return func() { g.Set(0) }
}

func (t *Telemetry) Registry() *prometheus.Registry {
	return t.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.reg, promhttp.HandlerOpts{Registry: t.reg})
}

// WriteTextfile dumps the registry for the node exporter textfile collector.
func (t *Telemetry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.reg); err != nil {
		return errors.New().Wrap(ErrWriteTextfile, err)
	}
	return nil
}
