// Package metrics exposes Prometheus metrics for the attendance service.
package metrics

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "face_attendance"

// Metrics implements biometric.Recorder and attendance.Observer.
type Metrics struct {
	verifications        *prometheus.CounterVec
	verificationDuration prometheus.Histogram
	verificationDistance prometheus.Histogram
	enrollments          *prometheus.CounterVec
	enrollmentDuration   prometheus.Histogram
	rebuildDuration      prometheus.Histogram
	modelComponents      prometheus.Gauge
	modelSamples         prometheus.Gauge
	modelVersion         prometheus.Gauge
	attendances          *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec

	registry *prometheus.Registry
}

var _ biometric.Recorder = (*Metrics)(nil)

// New creates the metrics and registers them, together with the Go runtime
// and process collectors, on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Face verifications partitioned by outcome and rejection reason.",
		}, []string{"outcome", "reason"}),
		verificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_duration_seconds",
			Help:      "Time taken to verify a live capture.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		verificationDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_distance",
			Help:      "Best distance to the claimed user's signatures.",
			Buckets:   prometheus.LinearBuckets(0.5, 0.5, 16),
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Enrollment attempts partitioned by outcome and rejection reason.",
		}, []string{"outcome", "reason"}),
		enrollmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrollment_duration_seconds",
			Help:      "Time taken to enroll a user, including the model rebuild.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_rebuild_duration_seconds",
			Help:      "Time taken to rebuild the subspace model.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		modelComponents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_components",
			Help:      "Number of components in the active subspace model.",
		}),
		modelSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_samples",
			Help:      "Number of samples the active model was trained on.",
		}),
		modelVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_version",
			Help:      "Version of the active model, 0 when uninitialized.",
		}),
		attendances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendances_total",
			Help:      "Recorded attendance events partitioned by status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests partitioned by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{
		m.verifications, m.verificationDuration, m.verificationDistance,
		m.enrollments, m.enrollmentDuration,
		m.rebuildDuration, m.modelComponents, m.modelSamples, m.modelVersion,
		m.attendances, m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// RegisterDB exports connection pool statistics of db.
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	if err := m.registry.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		return fmt.Errorf("failed to register database metrics: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}

// RecordVerification implements biometric.Recorder.
func (m *Metrics) RecordVerification(res biometric.VerificationResult, d time.Duration) {
	m.verifications.WithLabelValues(outcome(res.Accept), biometric.Reason(res.Reason)).Inc()
	m.verificationDuration.Observe(d.Seconds())
	if res.Compared > 0 {
		m.verificationDistance.Observe(res.Distance)
	}
}

// RecordEnrollment implements biometric.Recorder.
func (m *Metrics) RecordEnrollment(res biometric.EnrollmentResult, d time.Duration) {
	m.enrollments.WithLabelValues(outcome(res.OK), biometric.Reason(res.Reason)).Inc()
	m.enrollmentDuration.Observe(d.Seconds())
}

// RecordRebuild implements biometric.Recorder.
func (m *Metrics) RecordRebuild(stats biometric.RebuildStats) {
	m.rebuildDuration.Observe(stats.Duration.Seconds())
	if !stats.Initialized {
		m.modelComponents.Set(0)
		m.modelSamples.Set(0)
		m.modelVersion.Set(0)
		return
	}
	m.modelComponents.Set(float64(stats.Components))
	m.modelSamples.Set(float64(stats.Samples))
	m.modelVersion.Set(float64(stats.Version))
}

// RecordAttendance implements attendance.Observer.
func (m *Metrics) RecordAttendance(status string) {
	m.attendances.WithLabelValues(status).Inc()
}

// RecordHTTPRequest counts one served request.
func (m *Metrics) RecordHTTPRequest(method string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}
