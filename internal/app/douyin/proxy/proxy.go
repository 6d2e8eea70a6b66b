// Package proxy 代理源站视频下载。
//
// 浏览器不能直接下载抖音 CDN 的视频：源站校验 Referer/UA，而且
// 不带 CORS 头。这里由服务端带上伪装头转发，再把响应体流式
// 透传给客户端。
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OriginFetchError 表示源站返回了非 2xx 状态。
type OriginFetchError struct {
	Status int
}

func (e *OriginFetchError) Error() string {
	return fmt.Sprintf("origin returned status %d", e.Status)
}

type Proxy struct {
	client    *http.Client
	userAgent string
	referer   string
}

// New 创建下载代理。client 不设超时：视频动辄几百 MB，
// 整体时长由服务器的 WriteTimeout 和请求 ctx 兜底。
func New(userAgent, referer string) *Proxy {
	return &Proxy{
		client:    &http.Client{},
		userAgent: userAgent,
		referer:   referer,
	}
}

// Open 向源站发起请求并返回响应。调用方负责 Close Body。
// 透传 Range 头，让浏览器的断点续传继续可用。
func (p *Proxy) Open(ctx context.Context, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Referer", p.referer)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, &OriginFetchError{Status: resp.StatusCode}
	}
	return resp, nil
}

// SanitizeFilename 去掉文件名里在常见文件系统上非法的字符。
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
}

// ContentDisposition 生成带中文文件名的 attachment 头。
// 老客户端读引号里的 ASCII 兜底名，新客户端读 RFC 5987 的 filename*。
func ContentDisposition(filename string) string {
	ascii := make([]rune, 0, len(filename))
	for _, r := range filename {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			ascii = append(ascii, '_')
			continue
		}
		ascii = append(ascii, r)
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		string(ascii), pctEncode(filename))
}

// pctEncode 按 RFC 5987 的 attr-char 集合做百分号编码。
// 和 url.PathEscape 的保留字符集不一样，不能直接复用。
func pctEncode(s string) string {
	const attrChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!#$&+-.^_`|~"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(attrChars, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
