// Package metrics records task and live-reload activity for Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultLabel enumerates task outcomes for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultPanic   ResultLabel = "panic"
)

// Recorder holds the pipeline metrics. Every method is safe on a nil receiver so callers
// that run without metrics pass nil.
type Recorder struct {
	reg          *prom.Registry
	taskDuration *prom.HistogramVec
	taskResults  *prom.CounterVec
	clients      prom.Gauge
	broadcasts   *prom.CounterVec
}

// NewRecorder registers the metrics on reg, or on a fresh registry when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{reg: reg}
	r.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "toastpipe",
		Name:      "task_duration_seconds",
		Help:      "Duration of task runs",
		Buckets:   prom.DefBuckets,
	}, []string{"task"})
	r.taskResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "toastpipe",
		Name:      "task_results_total",
		Help:      "Task runs by outcome",
	}, []string{"task", "result"})
	r.clients = prom.NewGauge(prom.GaugeOpts{
		Namespace: "toastpipe",
		Name:      "livereload_clients",
		Help:      "Connected live-reload clients",
	})
	r.broadcasts = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "toastpipe",
		Name:      "livereload_broadcasts_total",
		Help:      "Live-reload messages sent, by type",
	}, []string{"type"})
	reg.MustRegister(r.taskDuration, r.taskResults, r.clients, r.broadcasts)
	return r
}

func (r *Recorder) ObserveTask(task string, d time.Duration, result ResultLabel) {
	if r == nil {
		return
	}
	r.taskDuration.WithLabelValues(task).Observe(d.Seconds())
	r.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (r *Recorder) AddClients(delta int) {
	if r == nil {
		return
	}
	r.clients.Add(float64(delta))
}

func (r *Recorder) IncBroadcast(kind string) {
	if r == nil {
		return
	}
	r.broadcasts.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
