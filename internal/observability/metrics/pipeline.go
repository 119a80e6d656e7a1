package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docflow/docflow/internal/core/domain"
)

// PipelineMetrics observes stage outcomes and terminal routing decisions.
// It satisfies the pipeline's Observer and RoutingObserver hooks.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageInFlight prometheus.Gauge
	routedTotal   *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	stageRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflow",
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total stage executions by stage and outcome.",
		},
		[]string{"service", "stage", "topic", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docflow",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage", "status"},
	)
	stageInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docflow",
			Subsystem: "pipeline",
			Name:      "stages_in_flight",
			Help:      "Number of stage executions currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	routedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docflow",
			Subsystem: "pipeline",
			Name:      "documents_routed_total",
			Help:      "Terminal routing decisions by resulting status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(stageRuns, stageDuration, stageInFlight, routedTotal)

	return &PipelineMetrics{
		registry:      registry,
		service:       service,
		stageRuns:     stageRuns,
		stageDuration: stageDuration,
		stageInFlight: stageInFlight,
		routedTotal:   routedTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StageStarted() {
	m.stageInFlight.Inc()
}

func (m *PipelineMetrics) StageCompleted(stage, topic string, duration time.Duration, err error) {
	m.stageInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.stageRuns.WithLabelValues(m.service, stage, topic, status).Inc()
	m.stageDuration.WithLabelValues(m.service, stage, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) DocumentRouted(status domain.DocumentStatus) {
	m.routedTotal.WithLabelValues(m.service, status.String()).Inc()
}
