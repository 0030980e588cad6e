package metrics

import (
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

/* ========================================================================
 * Prometheus Metrics - 可观测性指标
 * ========================================================================
 * 职责: 提供 Prometheus 指标注册和暴露
 * ======================================================================== */

var (
	// HTTPRequestDuration HTTP 请求延迟
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ga",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestTotal HTTP 请求总数
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ga",
			Subsystem: "http",
			Name:      "request_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TenantResolutionTotal 租户解析结果统计
	// source: cache (边缘缓存命中) / api (回源成功) / miss (未知租户)
	TenantResolutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ga",
			Subsystem: "tenant",
			Name:      "resolution_total",
			Help:      "Tenant resolution outcomes by source",
		},
		[]string{"source"},
	)

	// TenantFallbackDuration 回源解析延迟
	TenantFallbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ga",
			Subsystem: "tenant",
			Name:      "fallback_duration_seconds",
			Help:      "Authoritative tenant resolution latency",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// AuthzDenialsTotal 授权级联拒绝统计
	AuthzDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ga",
			Subsystem: "authz",
			Name:      "denials_total",
			Help:      "Authorization cascade denials by step and reason",
		},
		[]string{"step", "reason"},
	)

	// CacheWarmTotal 缓存预热统计
	CacheWarmTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ga",
			Subsystem: "cache",
			Name:      "warm_total",
			Help:      "Tenant cache warm operations",
		},
		[]string{"op", "result"}, // op: warm/evict, result: ok/error
	)
)

// RegisterMetricsEndpoint 注册 /metrics 端点
func RegisterMetricsEndpoint(app *fiber.App) {
	// 使用 fasthttpadaptor 将 promhttp.Handler 适配到 Fiber
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c fiber.Ctx) error {
		handler(c.RequestCtx())
		return nil
	})
}

// NewCounter 创建自定义 Counter
func NewCounter(namespace, subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewGauge 创建自定义 Gauge
func NewGauge(namespace, subsystem, name, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewHistogram 创建自定义 Histogram
func NewHistogram(namespace, subsystem, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}
