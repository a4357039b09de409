// Package metrics exports backend execution statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"strbackend/internal/backend"
)

const namespace = "strbackend"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Inference requests completed by the backend, by result",
		},
		[]string{"model", "result"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Time from batch start until the request's response was final",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "batches_total",
			Help:      "Batches executed by the backend",
		},
		[]string{"model"},
	)

	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "batch_size",
			Help:      "Total batch size of executed batches",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"model"},
	)

	computeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "compute_duration_seconds",
			Help:      "Time spent decoding, running the model and writing outputs per batch",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	admissionRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "admission_rejected_total",
			Help:      "Batches rejected before execution because no instance became free",
		},
		[]string{"model", "reason"},
	)

	instancesBusy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "instances_busy",
			Help:      "Model instances currently executing a batch",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, batchesTotal, batchSize, computeDuration, admissionRejected, instancesBusy)
}

// Reporter records the statistics of one model's batches.
type Reporter struct {
	model string
}

var _ backend.StatsReporter = (*Reporter)(nil)

// NewReporter returns a reporter labelling its series with model.
func NewReporter(model string) *Reporter { return &Reporter{model: model} }

func (r *Reporter) ReportRequest(_ backend.Request, success bool, t backend.BatchTimes) {
	result := "success"
	if !success {
		result = "failure"
	}
	requestsTotal.WithLabelValues(r.model, result).Inc()
	requestDuration.WithLabelValues(r.model).Observe(t.ExecEnd.Sub(t.ExecStart).Seconds())
}

func (r *Reporter) ReportBatch(total int, t backend.BatchTimes) {
	batchesTotal.WithLabelValues(r.model).Inc()
	batchSize.WithLabelValues(r.model).Observe(float64(total))
	computeDuration.WithLabelValues(r.model).Observe(t.ComputeEnd.Sub(t.ComputeStart).Seconds())
}

// AdmissionRejected counts a batch turned away by the instance pool.
func AdmissionRejected(model, reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	admissionRejected.WithLabelValues(model, reason).Inc()
}

// InstanceAcquired and InstanceReleased track busy instances.
func InstanceAcquired(model string) { instancesBusy.WithLabelValues(model).Inc() }

func InstanceReleased(model string) { instancesBusy.WithLabelValues(model).Dec() }
