// Package metrics holds the Prometheus collectors for the marketplace. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ordersCreated       prometheus.Counter
	orderTransitions    *prometheus.CounterVec
	rejectedTransitions *prometheus.CounterVec
	roleResolutions     *prometheus.CounterVec
	liveSubscribers     prometheus.Gauge
	httpDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "myhomeneeds_orders_created_total",
			Help: "Orders placed by customers.",
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myhomeneeds_order_transitions_total",
			Help: "Order status transitions applied, by target status.",
		}, []string{"status"}),
		rejectedTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myhomeneeds_order_transitions_rejected_total",
			Help: "Order status transitions refused, by reason.",
		}, []string{"reason"}),
		roleResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myhomeneeds_role_resolutions_total",
			Help: "Role resolutions after identity changes, by role.",
		}, []string{"role"}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "myhomeneeds_live_subscribers",
			Help: "Open websocket subscriptions.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "myhomeneeds_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.orderTransitions,
		m.rejectedTransitions,
		m.roleResolutions,
		m.liveSubscribers,
		m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderTransitioned(status string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) TransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTransitions.WithLabelValues(reason).Inc()
}

func (m *Metrics) RoleResolved(role string) {
	if m == nil {
		return
	}
	m.roleResolutions.WithLabelValues(role).Inc()
}

func (m *Metrics) SubscriberDelta(n int) {
	if m == nil {
		return
	}
	m.liveSubscribers.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, strconv.Itoa(code)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
