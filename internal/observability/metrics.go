// Package observability holds the Prometheus registry and the counters the
// settlement paths increment.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the registry with the instruments handlers record into.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	WebhookEvents    *prometheus.CounterVec
	PaymentsRecorded prometheus.Counter
	WalletCredits    *prometheus.CounterVec
	PayoutAttempts   *prometheus.CounterVec
}

// New builds a registry with process/go collectors plus the app counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscana_http_requests_total",
			Help: "HTTP requests by method, route and status class.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fiscana_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscana_webhook_events_total",
			Help: "Funding webhook deliveries by outcome.",
		}, []string{"outcome"}),
		PaymentsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fiscana_invoice_payments_total",
			Help: "Invoice payments successfully recorded.",
		}),
		WalletCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscana_wallet_credits_total",
			Help: "Wallet credit applications by result.",
		}, []string{"result"}),
		PayoutAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscana_payout_attempts_total",
			Help: "Payout rail calls by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.WebhookEvents, m.PaymentsRecorded, m.WalletCredits, m.PayoutAttempts)
	return m
}

// Handler serves the scrape endpoint from this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
