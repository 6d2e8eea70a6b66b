package httpapi

import (
	"time"

	"dydl.local/gee"
	"dydl.local/internal/app/douyin"
	"dydl.local/internal/app/douyin/fetchmeta"
	"dydl.local/internal/app/douyin/proxy"
	"dydl.local/internal/app/douyin/resolve"
	"dydl.local/internal/app/douyin/stats"
	"dydl.local/internal/platform/httpmiddleware"
	"dydl.local/internal/platform/ratelimit"
)

// Deps 是传输层需要的全部领域组件。
//
// 设计原因：
// - cmd/api 只负责"组装"和"挂载"，业务模块自己提供 RegisterAPIRoutes，避免路由散落在 main.go
// - 本包只做传输层工作：参数校验、错误映射、响应格式；领域逻辑在 internal/app/douyin 下
type Deps struct {
	Classifier *douyin.Classifier
	Resolver   *resolve.Resolver
	Selector   *douyin.Selector
	Meta       *fetchmeta.Client
	Proxy      *proxy.Proxy
	// Window 是解析配额（次数少、窗口长），和下面路由上挂的
	// RateLimit（防刷保护）是两回事，见 ratelimit 包的说明
	Window    *ratelimit.Window
	Collector stats.Collector
}

func RegisterAPIRoutes(api *gee.RouterGroup, d Deps, limiter *ratelimit.Limiter) {
	//解析 60次/分钟（防刷；业务配额由 handler 里的 Window 管）
	api.GET("/redirect", httpmiddleware.RateLimit(limiter, "redirect", 60, time.Minute), NewRedirectHandler(d))
	//元数据 60次/分钟
	api.GET("/analysis", httpmiddleware.RateLimit(limiter, "analysis", 60, time.Minute), NewAnalysisHandler(d))
	//选档 60次/分钟
	api.GET("/renditions", httpmiddleware.RateLimit(limiter, "renditions", 60, time.Minute), NewRenditionsHandler(d))
	//下载代理 30次/分钟，单个下载可能持续很久
	api.GET("/download", httpmiddleware.RateLimit(limiter, "download", 30, time.Minute), NewDownloadHandler(d))
}
