// Package prometheus exposes the pipeline's operational metrics on a
// dedicated registry.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Duration buckets sized for media pipelines, where a request spans
// milliseconds for a cached image up to minutes for a long video.
var (
	requestDurationBuckets  = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	transferDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	payloadSizeBuckets      = []float64{1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9}
)

// PipelineMetrics holds the instruments for the prediction pipeline.
type PipelineMetrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	BilledUnitsTotal *prometheus.CounterVec

	TransferBytes    *prometheus.HistogramVec
	TransferDuration *prometheus.HistogramVec
	UploadFailures   *prometheus.CounterVec

	FramesDecoded *prometheus.CounterVec
	RecordsDropped *prometheus.CounterVec
}

// NewPipelineMetrics registers every instrument on a fresh registry.
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	if namespace == "" {
		namespace = "visionserve"
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	factory := func(name, help string, labels ...string) *prometheus.CounterVec {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, labels)
		registry.MustRegister(v)
		return v
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: name, Help: help, Buckets: buckets,
		}, labels)
		registry.MustRegister(v)
		return v
	}

	return &PipelineMetrics{
		registry: registry,

		RequestsTotal: factory("requests_total",
			"Prediction requests by task and outcome", "task", "outcome"),
		RequestDuration: histogram("request_duration_seconds",
			"End-to-end prediction request duration", requestDurationBuckets, "task", "mode"),
		BilledUnitsTotal: factory("billed_units_total",
			"Billable prediction units", "task"),

		TransferBytes: histogram("transfer_bytes",
			"Payload sizes by direction and scheme", payloadSizeBuckets, "direction", "scheme"),
		TransferDuration: histogram("transfer_duration_seconds",
			"Payload transfer duration", transferDurationBuckets, "direction", "scheme"),
		UploadFailures: factory("upload_failures_total",
			"Result upload failures", "channel"),

		FramesDecoded: factory("frames_decoded_total",
			"Video frames decoded", "task"),
		RecordsDropped: factory("records_dropped_total",
			"Audit or metrics records dropped", "topic", "reason"),
	}
}

// Handler serves the registry for scraping.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveRequest records one finished request.
func (m *PipelineMetrics) ObserveRequest(task, mode, outcome string, count int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(task, outcome).Inc()
	m.RequestDuration.WithLabelValues(task, mode).Observe(elapsed.Seconds())
	if count > 0 {
		m.BilledUnitsTotal.WithLabelValues(task).Add(float64(count))
	}
}

// ObserveTransfer records one payload movement.
func (m *PipelineMetrics) ObserveTransfer(direction, schemeName string, bytes int, elapsed time.Duration) {
	m.TransferBytes.WithLabelValues(direction, schemeName).Observe(float64(bytes))
	m.TransferDuration.WithLabelValues(direction, schemeName).Observe(elapsed.Seconds())
}
