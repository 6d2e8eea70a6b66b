package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once 用来保证指标只注册一次。
	// Prometheus 的 registry 不允许重复注册同名指标，否则会直接 panic。
	once sync.Once

	// HTTPRequestsTotal：累计请求数（Counter）。
	// route 用路由模板而不是真实 path，避免无限 label。
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds：请求耗时分布（Histogram），算 P95/P99 用
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPInflightRequests：当前正在处理中的请求数（Gauge）
	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// ResolveTotal：短链解析次数，按命中的方法与结果分
	// method 是解析方法名（head_location/follow_redirect/...），失败时为 exhausted
	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolve_total",
			Help: "短链解析总数",
		},
		[]string{"method", "outcome"},
	)

	// ResolveDurationSeconds：一次完整级联的耗时。级联串行执行，
	// 越靠后的方法命中耗时越长，这个分布能看出各方法的实际命中率变化
	ResolveDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolve_duration_seconds",
			Help:    "完整解析级联的耗时分布",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	// UpstreamFetchErrors：元数据上游返回非成功状态的次数
	UpstreamFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetch_errors_total",
			Help: "元数据上游请求失败总数",
		},
		[]string{"kind"},
	)

	// ProxyBytesTotal：代理下载透传给客户端的字节数
	ProxyBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proxy_bytes_total",
			Help: "代理下载透传的总字节数",
		},
	)

	// CacheOperations：解析结果缓存的命中/未命中，level 为 l1/l2
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "解析缓存操作计数",
		},
		[]string{"level", "op"},
	)
)

// Init 注册指标：只允许注册一次（否则 panic: duplicate metrics collector registration）
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			ResolveTotal,
			ResolveDurationSeconds,
			UpstreamFetchErrors,
			ProxyBytesTotal,
			CacheOperations,
		)
	})
}
