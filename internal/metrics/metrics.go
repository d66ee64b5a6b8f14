// Package metrics exposes Prometheus counters for the usage engine and the
// notification pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Collector owns a private registry. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	ContactRequests     *prometheus.CounterVec
	Bookings            *prometheus.CounterVec
	SupplierLocks       *prometheus.CounterVec
	LimitWarnings       *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
	SweepOutcomes       *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		ContactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_requests_total",
			Help:      "Contact request submissions by outcome",
		}, []string{"outcome"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by source and outcome",
		}, []string{"source", "outcome"}),
		SupplierLocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supplier_lock_transitions_total",
			Help:      "Supplier lock and unlock transitions",
		}, []string{"transition", "reason"}),
		LimitWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_warnings_total",
			Help:      "Approaching-limit warnings sent to suppliers",
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by template and delivery status",
		}, []string{"template", "status"}),
		SweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_sweep_total",
			Help:      "Daily subscription sweep results per subscription",
		}, []string{"outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		c.ContactRequests,
		c.Bookings,
		c.SupplierLocks,
		c.LimitWarnings,
		c.Notifications,
		c.SweepOutcomes,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ContactRequest(outcome string) {
	if c == nil {
		return
	}
	c.ContactRequests.WithLabelValues(outcome).Inc()
}

func (c *Collector) Booking(source, outcome string) {
	if c == nil {
		return
	}
	c.Bookings.WithLabelValues(source, outcome).Inc()
}

func (c *Collector) SupplierLocked(reason string) {
	if c == nil {
		return
	}
	c.SupplierLocks.WithLabelValues("locked", reason).Inc()
}

func (c *Collector) SupplierUnlocked(reason string) {
	if c == nil {
		return
	}
	c.SupplierLocks.WithLabelValues("unlocked", reason).Inc()
}

func (c *Collector) LimitWarning(kind string) {
	if c == nil {
		return
	}
	c.LimitWarnings.WithLabelValues(kind).Inc()
}

// ObserveNotification satisfies notify.Recorder.
func (c *Collector) ObserveNotification(template, status string) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(template, status).Inc()
}

func (c *Collector) Sweep(outcome string) {
	if c == nil {
		return
	}
	c.SweepOutcomes.WithLabelValues(outcome).Inc()
}

// GinMiddleware records request count and latency per route template.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}
		start := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequestsTotal.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPRequestDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
