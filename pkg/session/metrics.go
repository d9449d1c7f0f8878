package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by a Manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Renewals      *prometheus.CounterVec
	RenewalJoins  prometheus.Counter
	RenewDuration prometheus.Histogram
	Retries       *prometheus.CounterVec
	Logouts       *prometheus.CounterVec
	Authenticated prometheus.Gauge
}

// NewMetrics registers the session collectors with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Renewals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_session_renewals_total",
				Help: "Network renewal attempts by result",
			},
			[]string{"result"},
		),
		RenewalJoins: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "authkit_session_renewal_joins_total",
				Help: "Callers that joined an in-flight renewal instead of starting one",
			},
		),
		RenewDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authkit_session_renewal_duration_seconds",
				Help:    "Duration of network renewal attempts",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_session_request_retries_total",
				Help: "Requests that received 401 by how the retry went",
			},
			[]string{"result"},
		),
		Logouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkit_session_logouts_total",
				Help: "Effective logouts by reason",
			},
			[]string{"reason"},
		),
		Authenticated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "authkit_session_authenticated",
				Help: "1 while a session is held, 0 otherwise",
			},
		),
	}
}

func (m *Metrics) renewal(err error, seconds float64) {
	if m == nil {
		return
	}
	m.RenewDuration.Observe(seconds)
	m.Renewals.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) joined() {
	if m == nil {
		return
	}
	m.RenewalJoins.Inc()
}

func (m *Metrics) retry(result string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(result).Inc()
}

func (m *Metrics) loggedOut(reason error) {
	if m == nil {
		return
	}
	label := "explicit"
	if reason != nil {
		label = resultLabel(reason)
	}
	m.Logouts.WithLabelValues(label).Inc()
	m.Authenticated.Set(0)
}

func (m *Metrics) authenticated() {
	if m == nil {
		return
	}
	m.Authenticated.Set(1)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoRenewalToken):
		return "no_renewal_token"
	case errors.Is(err, ErrRenewalRejected):
		return "rejected"
	case errors.Is(err, ErrLoggedOut):
		return "logged_out"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	default:
		return "error"
	}
}
