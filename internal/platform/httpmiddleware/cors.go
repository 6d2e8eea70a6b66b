package httpmiddleware

import (
	"net/http"

	"dydl.local/gee"
)

// CORS 给 API 响应加上宽松的跨域头。
// 前端是一个纯静态页面，通常不和本服务同源部署，所以这里放开到 *。
func CORS() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.SetHeader("Access-Control-Allow-Origin", "*")
		ctx.SetHeader("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.SetHeader("Access-Control-Allow-Headers", "Content-Type")

		if ctx.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
