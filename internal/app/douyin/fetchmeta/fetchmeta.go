// Package fetchmeta 封装第三方抖音元数据 API 的访问。
//
// 上游是社区维护的 API 网关（fetch_one_video 端点），返回的壳子
// 并不稳定：有时是 {code, data: {aweme_detail: {...}}}，有时 data
// 直接就是详情，这里负责把壳子剥掉，向上只暴露干净的详情 JSON。
package fetchmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dydl.local/internal/app/douyin"
	"dydl.local/internal/platform/metrics"
)

// UpstreamError 表示上游 API 明确报错：要么 HTTP 非 200，
// 要么壳子里的业务 code 不在成功集合（0 / 200）里。
type UpstreamError struct {
	Status int // HTTP 状态码
	Code   int // 壳子里的业务 code，HTTP 层出错时为 0
}

func (e *UpstreamError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("upstream api returned error code %d", e.Code)
	}
	return fmt.Sprintf("upstream api returned status %d", e.Status)
}

// MalformedResponseError 表示上游返回 200 但壳子里找不到视频详情。
type MalformedResponseError struct {
	Raw json.RawMessage
}

func (e *MalformedResponseError) Error() string {
	return "upstream api returned an unrecognized payload"
}

type Client struct {
	http *http.Client
	base string
	ua   string
}

func New(base, userAgent string, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		base: base,
		ua:   userAgent,
	}
}

// envelope 是上游响应的外壳。code 0 和 200 都算成功（上游两个
// 版本的行为不一样）。
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// FetchRaw 拉取指定视频的详情，返回剥壳后的原始 JSON。
// /api/analysis 直接把这个透传给前端，所以不在这里做结构化解析。
func (c *Client) FetchRaw(ctx context.Context, awemeID string) (json.RawMessage, error) {
	endpoint := c.base + "/api/douyin/web/fetch_one_video?aweme_id=" + url.QueryEscape(awemeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamFetchErrors.WithLabelValues("network").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamFetchErrors.WithLabelValues("status").Inc()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		metrics.UpstreamFetchErrors.WithLabelValues("network").Inc()
		return nil, err
	}

	detail, err := unwrap(body)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			metrics.UpstreamFetchErrors.WithLabelValues("status").Inc()
		} else {
			metrics.UpstreamFetchErrors.WithLabelValues("malformed").Inc()
		}
		return nil, err
	}
	return detail, nil
}

// FetchDetail 在 FetchRaw 的基础上做结构化解析，给选档逻辑用。
func (c *Client) FetchDetail(ctx context.Context, awemeID string) (*douyin.Detail, error) {
	raw, err := c.FetchRaw(ctx, awemeID)
	if err != nil {
		return nil, err
	}
	var d douyin.Detail
	if err := json.Unmarshal(raw, &d); err != nil {
		metrics.UpstreamFetchErrors.WithLabelValues("malformed").Inc()
		return nil, &MalformedResponseError{Raw: raw}
	}
	return &d, nil
}

// unwrap 依次试探几种已知的壳子形状：
//  1. data.aweme_detail：网关的标准形状
//  2. data 本身就是详情（带 video 和 author 字段）
//
// 业务 code 报错算上游错误，两种形状都对不上才算壳子坏了，
// 绝不把一个空详情混出去。
func unwrap(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedResponseError{Raw: body}
	}
	if env.Code != nil && *env.Code != 0 && *env.Code != 200 {
		return nil, &UpstreamError{Status: http.StatusOK, Code: *env.Code}
	}
	if len(env.Data) == 0 {
		return nil, &MalformedResponseError{Raw: body}
	}

	var probe struct {
		AwemeDetail json.RawMessage `json:"aweme_detail"`
		Video       json.RawMessage `json:"video"`
		Author      json.RawMessage `json:"author"`
	}
	if err := json.Unmarshal(env.Data, &probe); err != nil {
		return nil, &MalformedResponseError{Raw: body}
	}
	if len(probe.AwemeDetail) > 0 && string(probe.AwemeDetail) != "null" {
		return probe.AwemeDetail, nil
	}
	if len(probe.Video) > 0 && string(probe.Video) != "null" &&
		len(probe.Author) > 0 && string(probe.Author) != "null" {
		return env.Data, nil
	}
	return nil, &MalformedResponseError{Raw: body}
}
