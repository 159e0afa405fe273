package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products created",
	})

	ProductsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_updated_total",
		Help: "Total number of product updates written",
	})

	ProductsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_deleted_total",
		Help: "Total number of products deleted",
	})

	// DuplicateSKURejectedTotal is labelled by where the collision was caught:
	// "precheck" or "constraint".
	DuplicateSKURejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplicate_sku_rejected_total",
		Help: "Total number of writes rejected because the SKU is taken",
	}, []string{"detected_by"})

	ProductOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "product_operation_latency_seconds",
		Help:    "Latency of product service operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_events_published_total",
		Help: "Total number of product events published",
	}, []string{"event_type"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_events_publish_failed_total",
		Help: "Total number of product events that could not be published",
	}, []string{"event_type"})

	AuditEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_audit_events_consumed_total",
		Help: "Total number of product events consumed by the audit worker",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
