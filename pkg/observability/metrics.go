package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// View engine metrics
	ViewsOpened        *prometheus.CounterVec
	ViewsRepaired      prometheus.Counter
	ElementsAdded      *prometheus.CounterVec
	ElementsDropped    *prometheus.CounterVec
	DocumentsMalformed prometheus.Counter

	// Migration metrics
	MigrationDocuments *prometheus.CounterVec
	MigrationStages    *prometheus.HistogramVec

	// Repository metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector with the given namespace.
// Every collector owns its registry, so tests can create as many as they need.
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
		ViewsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "views_opened_total",
				Help:      "Total number of views opened, by origin",
			},
			[]string{"view_class", "origin"},
		),
		ViewsRepaired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "views_repaired_total",
				Help:      "Total number of dirty views saved back after reconciliation",
			},
		),
		ElementsAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_elements_added_total",
				Help:      "Total number of live objects added to views",
			},
			[]string{"kind"},
		),
		ElementsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_elements_dropped_total",
				Help:      "Total number of saved view elements left out of the scene",
			},
			[]string{"kind", "reason"},
		),
		DocumentsMalformed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_documents_malformed_total",
				Help:      "Total number of stored view documents that failed to parse",
			},
		),
		MigrationDocuments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migration_documents_total",
				Help:      "Total number of view documents processed by the id migration",
			},
			[]string{"outcome"},
		),
		MigrationStages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "migration_stage_duration_seconds",
				Help:      "Duration of each migration stage in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"stage", "status"},
		),
		DBOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
		DBDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Database operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ViewsOpened,
		c.ViewsRepaired,
		c.ElementsAdded,
		c.ElementsDropped,
		c.DocumentsMalformed,
		c.MigrationDocuments,
		c.MigrationStages,
		c.DBOperations,
		c.DBDuration,
	)

	return c
}

// RecordDBOperation records the outcome and duration of a store call
func (c *Collector) RecordDBOperation(operation string, started time.Time, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.DBOperations.WithLabelValues(operation, status).Inc()
	c.DBDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
