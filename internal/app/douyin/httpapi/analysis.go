package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"

	"dydl.local/gee"
	"dydl.local/internal/app/douyin"
	"dydl.local/internal/app/douyin/fetchmeta"
)

var videoPathRe = regexp.MustCompile(`/video/(\d+)`)

// extractAwemeID 从解析出的落地页 URL 里抠出视频 ID。
// 网页版有两种形态：路径式 /video/<id> 和弹层式 ?modal_id=<id>。
func extractAwemeID(raw string) string {
	if m := videoPathRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if u, err := url.Parse(raw); err == nil {
		if id := u.Query().Get("modal_id"); id != "" {
			return id
		}
	}
	return ""
}

// NewAnalysisHandler 处理 GET /api/analysis?url=<分享文本或链接>。
//
// 输入可以是纯视频 ID、网页链接，也可以是整段分享口令。
// 短链要先走解析级联（计入配额），拿到 ID 的输入直接查详情。
// 成功时把上游详情 JSON 原样透传，前端按需取字段。
func NewAnalysisHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		raw := ctx.Query("url")
		in := d.Classifier.Classify(raw)

		var awemeID string
		switch in.Kind {
		case douyin.KindVideoID:
			awemeID = in.VideoID

		case douyin.KindShortLink:
			if !checkQuota(ctx, d) {
				return
			}
			out := d.Resolver.Resolve(ctx.Req.Context(), in.Link)
			if !out.Success {
				ctx.JSON(http.StatusBadRequest, gee.H{
					"error":  "短链解析失败",
					"method": out.Method,
				})
				return
			}
			awemeID = extractAwemeID(out.URL)
			if awemeID == "" {
				ctx.JSON(http.StatusBadRequest, gee.H{
					"error":    "落地页里没有视频 ID",
					"finalUrl": out.URL,
				})
				return
			}

		case douyin.KindUserProfile:
			ctx.JSON(http.StatusBadRequest, gee.H{"error": "暂不支持用户主页链接"})
			return

		default:
			ctx.JSON(http.StatusBadRequest, gee.H{"error": "无法识别的输入"})
			return
		}

		detail, err := d.Meta.FetchRaw(ctx.Req.Context(), awemeID)
		if err != nil {
			var ue *fetchmeta.UpstreamError
			if errors.As(err, &ue) {
				ctx.JSON(http.StatusBadGateway, gee.H{"error": "上游接口异常", "status": ue.Status})
				return
			}
			ctx.JSON(http.StatusBadGateway, gee.H{"error": "获取视频详情失败"})
			return
		}

		ctx.JSON(http.StatusOK, detail)
	}
}

// NewRenditionsHandler 处理 GET /api/renditions?url=<输入>。
// 在 analysis 的基础上做选档，给不想自己解析详情 JSON 的调用方用。
func NewRenditionsHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		raw := ctx.Query("url")
		in := d.Classifier.Classify(raw)
		if in.Kind != douyin.KindVideoID {
			ctx.JSON(http.StatusBadRequest, gee.H{"error": "renditions 只接受视频 ID 或带 ID 的链接"})
			return
		}

		detail, err := d.Meta.FetchDetail(ctx.Req.Context(), in.VideoID)
		if err != nil {
			var ue *fetchmeta.UpstreamError
			if errors.As(err, &ue) {
				ctx.JSON(http.StatusBadGateway, gee.H{"error": "上游接口异常", "status": ue.Status})
				return
			}
			ctx.JSON(http.StatusBadGateway, gee.H{"error": "获取视频详情失败"})
			return
		}

		renditions, err := d.Selector.Select(detail)
		if err != nil {
			ctx.JSON(http.StatusNotFound, gee.H{"error": "没有可下载的档位"})
			return
		}
		ctx.JSON(http.StatusOK, gee.H{
			"aweme_id":   detail.AwemeID,
			"desc":       detail.Desc,
			"renditions": renditions,
		})
	}
}
