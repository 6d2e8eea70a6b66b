package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dydl.local/gee"
	"dydl.local/internal/app/douyin/stats"
	"dydl.local/internal/platform/httpmiddleware"
)

// validTarget 只接受完整的 http/https URL，别的一律拒绝。
func validTarget(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// checkQuota 执行解析配额检查。放行返回 true；
// 拒绝时已写入 429 响应。Redis 不可用时放行（fail-open），
// 限流坏了不应该把主功能一起带下水。
func checkQuota(ctx *gee.Context, d Deps) bool {
	if d.Window == nil {
		return true
	}
	ip := httpmiddleware.ClientIP(ctx.Req)
	decision, err := d.Window.Check(ctx.Req.Context(), ip)
	if err != nil {
		slog.Warn("resolve quota check failed, allowing", "err", err)
		return true
	}
	if !decision.Allowed {
		ctx.SetHeader("Retry-After", strconv.Itoa(decision.RemainingSeconds))
		ctx.JSON(http.StatusTooManyRequests, gee.H{
			"error":             "解析次数已达上限，请稍后再试",
			"remaining_seconds": decision.RemainingSeconds,
		})
		return false
	}
	// 先记账再解析：失败的解析同样消耗了下游资源
	if err := d.Window.Record(ctx.Req.Context(), ip); err != nil {
		slog.Warn("resolve quota record failed", "err", err)
	}
	return true
}

// NewRedirectHandler 处理 GET /api/redirect?url=<短链>。
// 成功与否都返回 200，结果里的 success/method 说明发生了什么。
func NewRedirectHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		link := ctx.Query("url")
		if !validTarget(link) {
			ctx.JSON(http.StatusBadRequest, gee.H{"error": "url 参数必须是完整的 http(s) 链接"})
			return
		}
		if !checkQuota(ctx, d) {
			return
		}

		start := time.Now()
		out := d.Resolver.Resolve(ctx.Req.Context(), link)

		if d.Collector != nil {
			//异步记录解析事件
			d.Collector.Collect(stats.ResolveEvent{
				ShortLink:  link,
				Method:     out.Method,
				Success:    out.Success,
				DurationMS: time.Since(start).Milliseconds(),
				IP:         httpmiddleware.ClientIP(ctx.Req),
				ResolvedAt: time.Now(),
			})
		}

		ctx.JSON(http.StatusOK, out)
	}
}
