package bonito

import (
	"net/http"
	"time"

	"github.com/kayac/Bonito/fcmv1"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports the provider's counters as Prometheus metrics.
type Metrics struct {
	registry     *prom.Registry
	requests     prom.Counter
	sent         prom.Counter
	errors       *prom.CounterVec
	responseTime prom.Histogram
}

// NewMetrics constructs and registers Prometheus metrics.
func NewMetrics(reg *prom.Registry) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		requests: prom.NewCounter(prom.CounterOpts{
			Namespace: "bonito",
			Name:      "requests_total",
			Help:      "Notification requests accepted by the provider",
		}),
		sent: prom.NewCounter(prom.CounterOpts{
			Namespace: "bonito",
			Name:      "sent_total",
			Help:      "Notifications delivered to fcm",
		}),
		errors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bonito",
			Name:      "errors_total",
			Help:      "Failed notifications by error kind and fcm status",
		}, []string{"kind", "status"}),
		responseTime: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bonito",
			Name:      "response_time_seconds",
			Help:      "Response time of fcm",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.sent, m.errors, m.responseTime)
	return m
}

// Handler returns the http handler which exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncRequests(n int) {
	if m == nil {
		return
	}
	m.requests.Add(float64(n))
}

func (m *Metrics) IncSent() {
	if m == nil {
		return
	}
	m.sent.Inc()
}

func (m *Metrics) IncError(err error) {
	if m == nil {
		return
	}
	e, ok := fcmv1.AsError(err)
	if !ok {
		m.errors.WithLabelValues("unknown", "").Inc()
		return
	}
	m.errors.WithLabelValues(e.Kind.String(), e.Status()).Inc()
}

func (m *Metrics) ObserveResponseTime(d time.Duration) {
	if m == nil {
		return
	}
	m.responseTime.Observe(d.Seconds())
}
