package prometheus

import (
	"time"

	"shopease-backend/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Order item metrics
	OrderItemOperationsCounter prometheus.CounterVec
	OutOfStockCounter          prometheus.CounterVec

	// Inventory metrics
	ProductInventoryGauge prometheus.GaugeVec

	// Report task metrics
	ReportTasksCounter prometheus.CounterVec
	ReportTaskDuration prometheus.HistogramVec
	PendingTasksGauge  prometheus.Gauge

	// Hierarchy query metrics
	HierarchyQueryCounter prometheus.CounterVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(cfg *config.Config) {
	// Use metric prefix from configuration
	prefix := cfg.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Order item metrics
	OrderItemOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_item_operations_total",
			Help: "Total number of order item placement attempts",
		},
		[]string{"outcome"},
	)

	OutOfStockCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_out_of_stock_rejections_total",
			Help: "Total number of order items rejected for insufficient stock",
		},
		[]string{"product_id"},
	)

	// Product inventory metrics
	ProductInventoryGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_product_inventory",
			Help: "Current inventory level for products",
		},
		[]string{"product_id"},
	)

	// Report task metrics
	ReportTasksCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_report_tasks_total",
			Help: "Total number of report task state transitions",
		},
		[]string{"kind", "status"},
	)

	ReportTaskDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_report_task_duration_seconds",
			Help:    "Duration of report task executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	PendingTasksGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_report_tasks_pending",
			Help: "Number of report tasks currently waiting for a worker",
		},
	)

	// Hierarchy query metrics
	HierarchyQueryCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_hierarchy_queries_total",
			Help: "Total number of employee hierarchy resolutions",
		},
		[]string{"outcome"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordOrderItemOperation increments the counter for order item placements
func RecordOrderItemOperation(outcome string) {
	OrderItemOperationsCounter.WithLabelValues(outcome).Inc()
}

// RecordReportTask increments the counter for a report task state transition
func RecordReportTask(kind string, status string) {
	ReportTasksCounter.WithLabelValues(kind, status).Inc()
}

// RecordHierarchyQuery increments the counter for hierarchy resolutions
func RecordHierarchyQuery(outcome string) {
	HierarchyQueryCounter.WithLabelValues(outcome).Inc()
}
