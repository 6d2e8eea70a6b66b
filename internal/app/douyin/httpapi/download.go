package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"dydl.local/gee"
	"dydl.local/internal/app/douyin/proxy"
	"dydl.local/internal/platform/metrics"
)

// 源站的这些头原样透传给浏览器
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// NewDownloadHandler 处理 GET /api/download?url=<视频地址>&filename=<文件名>。
//
// 响应体从源站流式透传，不在内存里攒整个文件。
// Content-Encoding 不透传：Go 的 Transport 已经把 gzip 解开了，
// 再带这个头浏览器会二次解压失败。
func NewDownloadHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		target := ctx.Query("url")
		if !validTarget(target) {
			ctx.JSON(http.StatusBadRequest, gee.H{"error": "url 参数必须是完整的 http(s) 链接"})
			return
		}

		filename := proxy.SanitizeFilename(ctx.DefaultQuery("filename", "video.mp4"))
		if filename == "" {
			filename = "video.mp4"
		}

		resp, err := d.Proxy.Open(ctx.Req.Context(), target, ctx.Req.Header.Get("Range"))
		if err != nil {
			var oe *proxy.OriginFetchError
			if errors.As(err, &oe) {
				ctx.JSON(http.StatusInternalServerError, gee.H{"error": "源站拒绝了下载请求", "status": oe.Status})
				return
			}
			ctx.JSON(http.StatusInternalServerError, gee.H{"error": "连接源站失败"})
			return
		}
		defer resp.Body.Close()

		for _, h := range passthroughHeaders {
			if v := resp.Header.Get(h); v != "" {
				ctx.SetHeader(h, v)
			}
		}
		ctx.SetHeader("Access-Control-Allow-Origin", "*")
		ctx.SetHeader("Content-Disposition", proxy.ContentDisposition(filename))

		n, err := ctx.Stream(resp.StatusCode, resp.Body)
		metrics.ProxyBytesTotal.Add(float64(n))
		if err != nil {
			// 头已经发出去了，只能记日志；多半是客户端中途取消
			slog.Debug("download stream interrupted", "err", err, "bytes", n)
		}
	}
}
