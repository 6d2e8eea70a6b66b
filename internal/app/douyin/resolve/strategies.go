package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// noRedirectClient 返回一个在第一个 3xx 处停下的客户端，
// 这样一次请求就能从 Location 头里拿到跳转目标。
func noRedirectClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// locationFrom 取出响应的 Location，相对地址按请求 URL 补全。
func locationFrom(resp *http.Response, base string) string {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return ""
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return ""
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return loc
	}
	b, err := url.Parse(base)
	if err != nil {
		return loc
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	return b.ResolveReference(ref).String()
}

// ---- head_location：HEAD 请求 + 手动读 Location ----

type headLocation struct {
	client *http.Client
	ua     string
}

func newHeadLocation(ua string, timeout time.Duration) *headLocation {
	return &headLocation{client: noRedirectClient(timeout), ua: ua}
}

func (s *headLocation) Name() string { return "head_location" }

func (s *headLocation) Resolve(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.ua)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return locationFrom(resp, link), nil
}

// ---- get_location：有些短链服务对 HEAD 返回 405，换 GET 再来一次 ----

type getLocation struct {
	client *http.Client
	ua     string
}

func newGetLocation(ua string, timeout time.Duration) *getLocation {
	return &getLocation{client: noRedirectClient(timeout), ua: ua}
}

func (s *getLocation) Name() string { return "get_location" }

func (s *getLocation) Resolve(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.ua)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return locationFrom(resp, link), nil
}

// ---- follow_redirect：放开自动跟随，取最终落地 URL ----
// 能处理多级跳转和 meta refresh 之外的所有常规跳转链。

type followRedirect struct {
	client *http.Client
	ua     string
}

func newFollowRedirect(ua string, timeout time.Duration) *followRedirect {
	return &followRedirect{client: &http.Client{Timeout: timeout}, ua: ua}
}

func (s *followRedirect) Name() string { return "follow_redirect" }

func (s *followRedirect) Resolve(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.ua)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	final := resp.Request.URL.String()
	if final == link {
		return "", nil
	}
	return final, nil
}

// ---- pattern_probe：拿短链 token 直接拼主站 URL 逐个试探 ----
//
// 短链服务整体故障时的自救手段：token 有时能直接映射到主站路径。
// 只对短链域名启用，每个候选 URL 单独一个小超时。

type patternProbe struct {
	shortHost    string
	platformHost string
	ua           string
	client       *http.Client
	probeTimeout time.Duration
}

func newPatternProbe(shortHost, platformHost, ua string, probeTimeout time.Duration) *patternProbe {
	return &patternProbe{
		shortHost:    shortHost,
		platformHost: platformHost,
		ua:           ua,
		client:       noRedirectClient(probeTimeout),
		probeTimeout: probeTimeout,
	}
}

func (s *patternProbe) Name() string { return "pattern_probe" }

func (s *patternProbe) Resolve(ctx context.Context, link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil || u.Host != s.shortHost {
		return "", nil
	}
	token := strings.Trim(u.Path, "/")
	if token == "" || strings.Contains(token, "/") {
		return "", nil
	}

	candidates := []string{
		fmt.Sprintf("https://%s/video/%s", s.platformHost, token),
		fmt.Sprintf("https://%s/aweme/v1/play/?video_id=%s", s.platformHost, token),
		fmt.Sprintf("https://%s/share/video/%s", s.platformHost, token),
		strings.TrimSuffix(link, "/") + "/",
	}

	for _, candidate := range candidates {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		target, ok := s.probe(probeCtx, candidate)
		cancel()
		if ok {
			return target, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", nil
}

func (s *patternProbe) probe(ctx context.Context, candidate string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", s.ua)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusOK {
		return candidate, true
	}
	if loc := locationFrom(resp, candidate); loc != "" {
		return loc, true
	}
	return "", false
}

// ---- third_party：公共短链展开服务，最后的手段 ----
//
// 服务列表是 "URL 前缀" 形式，目标短链 QueryEscape 后直接拼接。
// 各家返回字段不统一，依次找 expanded_url / long_url / url。

type thirdParty struct {
	services []string
	client   *http.Client
}

func newThirdParty(services []string, timeout time.Duration) *thirdParty {
	return &thirdParty{services: services, client: &http.Client{Timeout: timeout}}
}

func (s *thirdParty) Name() string { return "third_party" }

func (s *thirdParty) Resolve(ctx context.Context, link string) (string, error) {
	for _, prefix := range s.services {
		target := s.unshorten(ctx, prefix, link)
		if target != "" && target != link {
			return target, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", nil
}

func (s *thirdParty) unshorten(ctx context.Context, prefix, link string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prefix+url.QueryEscape(link), nil)
	if err != nil {
		return ""
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		// 有的服务直接回纯文本 URL
		text := strings.TrimSpace(string(body))
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			return text
		}
		return ""
	}
	for _, field := range []string{"expanded_url", "long_url", "url"} {
		if v, ok := payload[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
