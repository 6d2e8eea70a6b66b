package douyin

import (
	"regexp"
	"strings"
)

// InputKind 表示用户提交的一段文本被识别成了什么。
type InputKind string

const (
	// KindVideoID 已经拿到了 aweme_id，不需要再做任何跳转解析
	KindVideoID InputKind = "video_id"
	// KindShortLink v.douyin.com 短链，需要先解析出落地页
	KindShortLink InputKind = "short_link"
	// KindUserProfile 用户主页链接，本服务不处理
	KindUserProfile InputKind = "user_profile"
	// KindUnrecognized 无法识别的输入
	KindUnrecognized InputKind = "unrecognized"
)

// Input 是分类结果。
//
// - VideoID 仅在 KindVideoID 时非空
// - Link 仅在 KindShortLink 时非空，已经裁掉了短链后面的多余文本
type Input struct {
	Kind    InputKind
	VideoID string
	Link    string
}

// Classifier 从一段用户粘贴的文本里识别出视频 ID 或者短链。
//
// 规则有严格的先后顺序：
//  1. 整段文本就是 18~19 位数字 → 视频 ID
//  2. 文本里带 aweme_id=<id>、video/<id>、<id>? 或以 <id> 结尾 → 视频 ID
//  3. 含 https://<短链域>/<token> → 短链（抖音分享口令通常混着一堆文案）
//  4. 含 /user/ → 用户主页
//  5. 文本里散落着 18~19 位数字 → 当作视频 ID 兜底
//  6. 其余 → 无法识别
//
// 顺序不能乱：短链 URL 里也可能出现长数字，必须先按结构化规则匹配；
// 反过来，长链里本来就带着 id，走短链解析纯属浪费解析配额。
type Classifier struct {
	shortHost string

	bareID    *regexp.Regexp
	urlIDs    []*regexp.Regexp
	shortLink *regexp.Regexp
	looseID   *regexp.Regexp
}

func NewClassifier(shortHost string) *Classifier {
	return &Classifier{
		shortHost: shortHost,
		bareID:    regexp.MustCompile(`^\d{18,19}$`),
		urlIDs: []*regexp.Regexp{
			regexp.MustCompile(`aweme_id=(\d{18,19})`),
			regexp.MustCompile(`video/(\d{18,19})`),
			regexp.MustCompile(`(\d{18,19})\?`),
			regexp.MustCompile(`(\d{18,19})$`),
		},
		shortLink: regexp.MustCompile(`https?://` + regexp.QuoteMeta(shortHost) + `/[A-Za-z0-9_-]+/?`),
		looseID:   regexp.MustCompile(`\d{18,19}`),
	}
}

func (c *Classifier) Classify(raw string) Input {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Input{Kind: KindUnrecognized}
	}

	if c.bareID.MatchString(text) {
		return Input{Kind: KindVideoID, VideoID: text}
	}
	for _, re := range c.urlIDs {
		if m := re.FindStringSubmatch(text); m != nil {
			return Input{Kind: KindVideoID, VideoID: m[1]}
		}
	}
	if m := c.shortLink.FindString(text); m != "" {
		return Input{Kind: KindShortLink, Link: strings.TrimSuffix(m, "/")}
	}
	if strings.Contains(text, "/user/") {
		return Input{Kind: KindUserProfile}
	}
	if m := c.looseID.FindString(text); m != "" {
		return Input{Kind: KindVideoID, VideoID: m}
	}
	return Input{Kind: KindUnrecognized}
}
