// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quick_survey"

// Sync outcomes.
const (
	SyncOK     = "ok"
	SyncFailed = "failed"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	Responses        prometheus.Counter
	Syncs            *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		Responses: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "survey_responses_total",
				Help:      "Survey responses stored",
			},
		),
		Syncs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mailerlite_syncs_total",
				Help:      "Contact syncs to MailerLite by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ResponseSubmitted() {
	if m == nil {
		return
	}
	m.Responses.Inc()
}

func (m *Metrics) Synced(result string) {
	if m == nil {
		return
	}
	m.Syncs.WithLabelValues(result).Inc()
}

// Middleware records every request under its chi route pattern, so path
// parameters do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		snoop := httpsnoop.CaptureMetrics(next, w, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.RequestDuration.WithLabelValues(r.Method, route).Observe(snoop.Duration.Seconds())
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(snoop.Code)).Inc()
	})
}
