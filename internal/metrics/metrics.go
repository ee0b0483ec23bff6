package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LeventeLantos/listsync/internal/model"
)

const namespace = "listsync"

// Metrics groups the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Candidates        *prometheus.CounterVec
	ValidatorFailures prometheus.Counter
	ListSyncs         *prometheus.CounterVec
	SyncDuration      *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Filter candidates processed, by outcome",
		}, []string{"outcome"}),
		ValidatorFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "number_validation_failures_total",
			Help:      "Number checks that failed or timed out",
		}),
		ListSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_syncs_total",
			Help:      "List reconciliations, by trigger and status",
		}, []string{"trigger", "status"}),
		SyncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_sync_duration_seconds",
			Help:      "Duration of list reconciliations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"trigger"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) RecordResult(res model.SyncResult) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues("added").Add(float64(res.Added))
	m.Candidates.WithLabelValues("duplicated").Add(float64(res.Duplicated))
	m.Candidates.WithLabelValues("error").Add(float64(res.Errors))
}

func (m *Metrics) RecordValidatorFailure() {
	if m == nil {
		return
	}
	m.ValidatorFailures.Inc()
}

// TrackSync starts timing a list reconciliation; call the returned func with
// the outcome.
func (m *Metrics) TrackSync(trigger string) func(err error) {
	start := time.Now()
	return func(err error) {
		if m == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.ListSyncs.WithLabelValues(trigger, status).Inc()
		m.SyncDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
