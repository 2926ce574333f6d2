// Package metrics exposes gateway counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShifatiRabbi/ecommerce-project/internal/autosave"
	"github.com/ShifatiRabbi/ecommerce-project/internal/notify"
)

// Collector holds all Prometheus metrics for the gateway
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Save metrics
	SavesStarted  *prometheus.CounterVec
	SavesFinished *prometheus.CounterVec
	SaveDuration  *prometheus.HistogramVec
	SavesInFlight prometheus.Gauge

	// Notification metrics
	NotificationsShown  *prometheus.CounterVec
	NotificationsClosed *prometheus.CounterVec
	NotificationVisible prometheus.Gauge

	// Upstream metrics
	FeedUpdates   prometheus.Counter
	PendingOrders prometheus.Gauge
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SavesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_started_total",
				Help:      "Total number of save requests issued",
			},
			[]string{"form"},
		),
		SavesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "saves_finished_total",
				Help:      "Total number of save requests finished, by result",
			},
			[]string{"form", "result"},
		),
		SaveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "save_duration_seconds",
				Help:      "Save request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"form"},
		),
		SavesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "saves_in_flight",
				Help:      "Number of save requests currently in flight",
			},
		),
		NotificationsShown: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_shown_total",
				Help:      "Total number of banners shown, by severity",
			},
			[]string{"severity"},
		),
		NotificationsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_closed_total",
				Help:      "Total number of banners closed, by reason",
			},
			[]string{"reason"},
		),
		NotificationVisible: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notification_visible",
				Help:      "1 while a banner is on screen",
			},
		),
		FeedUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_updates_total",
				Help:      "Total number of order updates received from the feed",
			},
		),
		PendingOrders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_orders",
				Help:      "Pending orders as last reported by the dashboard stats",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.SavesStarted,
		c.SavesFinished,
		c.SaveDuration,
		c.SavesInFlight,
		c.NotificationsShown,
		c.NotificationsClosed,
		c.NotificationVisible,
		c.FeedUpdates,
		c.PendingOrders,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SaveStarted implements autosave.Observer
func (c *Collector) SaveStarted(ev autosave.SaveEvent) {
	c.SavesStarted.WithLabelValues(ev.FormID).Inc()
	c.SavesInFlight.Inc()
}

// SaveFinished implements autosave.Observer
func (c *Collector) SaveFinished(ev autosave.SaveEvent) {
	c.SavesInFlight.Dec()
	c.SavesFinished.WithLabelValues(ev.FormID, string(ev.Result)).Inc()
	if !ev.FinishedAt.IsZero() && !ev.StartedAt.IsZero() {
		c.SaveDuration.WithLabelValues(ev.FormID).Observe(ev.FinishedAt.Sub(ev.StartedAt).Seconds())
	}
}

// Show implements notify.Renderer
func (c *Collector) Show(n notify.Notification) {
	c.NotificationsShown.WithLabelValues(string(n.Severity)).Inc()
	c.NotificationVisible.Set(1)
}

// Close implements notify.Renderer
func (c *Collector) Close(n notify.Notification, reason notify.CloseReason) {
	c.NotificationsClosed.WithLabelValues(string(reason)).Inc()
	c.NotificationVisible.Set(0)
}

// Middleware records request counts and latency by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
