package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 订单指标
	ordersCreatedTotal    *prometheus.CounterVec
	orderTransitionsTotal *prometheus.CounterVec
	cancellationsTotal    *prometheus.CounterVec

	// 支付指标
	paymentSessionsTotal      *prometheus.CounterVec
	paymentVerificationsTotal *prometheus.CounterVec

	// 归并指标
	reconcileRecordsScanned prometheus.Counter
	reconcileConflictsTotal prometheus.Counter
	reconcileSkippedTotal   prometheus.Counter

	// 存储指标
	storeOperationsTotal *prometheus.CounterVec

	// Worker 指标
	workerQueueDepth prometheus.Gauge
	workerTasksTotal *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ordersCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Total number of orders created",
			},
			[]string{"payment_method"},
		),

		orderTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Total number of order status transitions",
			},
			[]string{"to"},
		),

		cancellationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_cancellations_total",
				Help: "Total number of customer cancellation attempts",
			},
			[]string{"outcome"},
		),

		paymentSessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_sessions_total",
				Help: "Total number of checkout sessions started",
			},
			[]string{"outcome"},
		),

		paymentVerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_verifications_total",
				Help: "Total number of payment session verifications",
			},
			[]string{"result"},
		),

		reconcileRecordsScanned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reconcile_records_scanned_total",
				Help: "Raw order records scanned during reconciliation",
			},
		),

		reconcileConflictsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reconcile_conflicts_total",
				Help: "Conflicts on immutable fields detected during reconciliation",
			},
		),

		reconcileSkippedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reconcile_records_skipped_total",
				Help: "Malformed records skipped during reconciliation",
			},
		),

		storeOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_operations_total",
				Help: "Record store operations",
			},
			[]string{"namespace", "operation", "status"},
		),

		workerQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_queue_depth",
				Help: "Number of follow-up tasks waiting in the worker queue",
			},
		),

		workerTasksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_tasks_total",
				Help: "Follow-up tasks processed by the worker pool",
			},
			[]string{"kind", "status"},
		),
	}
}

// Default 全局收集器实例
var Default = NewMetricsCollector()

// RecordHTTPRequest 记录 HTTP 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordOrderCreated 记录订单创建
func (m *MetricsCollector) RecordOrderCreated(paymentMethod string) {
	m.ordersCreatedTotal.WithLabelValues(paymentMethod).Inc()
}

// RecordOrderTransition 记录订单状态流转
func (m *MetricsCollector) RecordOrderTransition(to string) {
	m.orderTransitionsTotal.WithLabelValues(to).Inc()
}

// RecordCancellation 记录客户取消结果 (allowed/rejected)
func (m *MetricsCollector) RecordCancellation(outcome string) {
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

// RecordPaymentSession 记录支付会话创建结果 (created/failed)
func (m *MetricsCollector) RecordPaymentSession(outcome string) {
	m.paymentSessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPaymentVerification 记录验证结果 (paid/pending/failed/error)
func (m *MetricsCollector) RecordPaymentVerification(result string) {
	m.paymentVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordReconcileScan 记录一次归并扫描
func (m *MetricsCollector) RecordReconcileScan(records, skipped, conflicts int) {
	m.reconcileRecordsScanned.Add(float64(records))
	m.reconcileSkippedTotal.Add(float64(skipped))
	m.reconcileConflictsTotal.Add(float64(conflicts))
}

// RecordStoreOperation 记录存储操作
func (m *MetricsCollector) RecordStoreOperation(namespace, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeOperationsTotal.WithLabelValues(namespace, operation, status).Inc()
}

// SetWorkerQueueDepth 设置队列深度
func (m *MetricsCollector) SetWorkerQueueDepth(depth int) {
	m.workerQueueDepth.Set(float64(depth))
}

// RecordWorkerTask 记录任务处理结果 (ok/retry/dropped)
func (m *MetricsCollector) RecordWorkerTask(kind, status string) {
	m.workerTasksTotal.WithLabelValues(kind, status).Inc()
}
