package resolve

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"dydl.local/internal/platform/metrics"
)

// 解析失败时的两个收尾标记：
// MethodUserGuidance 表示输入确实是分享短链，但所有方法都没拿到落地页，
// 前端应当引导用户换一种分享方式（例如直接粘贴网页版链接）。
// MethodNoRedirect 表示这个 URL 根本没有跳转行为。
const (
	MethodCache        = "cache"
	MethodUserGuidance = "user_guidance_needed"
	MethodNoRedirect   = "no_redirect_found"
)

// Outcome 是一次解析的最终结果，字段形状直接对外出 JSON。
type Outcome struct {
	Success     bool   `json:"success"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	OriginalURL string `json:"original_url"`
}

// Strategy 是单个解析方法。返回空串表示"这个方法没找到"，
// 返回 error 表示方法本身执行失败，两者都会让级联继续往下走。
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, link string) (string, error)
}

// Resolver 按固定顺序逐个尝试解析方法，第一个拿到结果的胜出。
//
// 顺序从便宜到昂贵：先试不跟随跳转的 HEAD/GET（一次请求拿 Location），
// 再放开跟随，然后是短链 token 的模式探测，最后才求助第三方展开服务。
type Resolver struct {
	strategies []Strategy
	shortHost  string
	cache      *Cache
	now        func() time.Time
}

// Options 是 Resolver 的装配参数，字段含义见 config 包的同名配置。
type Options struct {
	ShortHost         string
	PlatformHost      string
	UserAgent         string
	Timeout           time.Duration
	ProbeTimeout      time.Duration
	UnshortenServices []string
	Cache             *Cache
}

func New(opts Options) *Resolver {
	return &Resolver{
		strategies: []Strategy{
			newHeadLocation(opts.UserAgent, opts.Timeout),
			newGetLocation(opts.UserAgent, opts.Timeout),
			newFollowRedirect(opts.UserAgent, opts.Timeout),
			newPatternProbe(opts.ShortHost, opts.PlatformHost, opts.UserAgent, opts.ProbeTimeout),
			newThirdParty(opts.UnshortenServices, opts.Timeout),
		},
		shortHost: opts.ShortHost,
		cache:     opts.Cache,
		now:       time.Now,
	}
}

// NewWithStrategies 给测试和特殊部署留的口子，按传入顺序级联。
func NewWithStrategies(shortHost string, cache *Cache, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, shortHost: shortHost, cache: cache, now: time.Now}
}

func (r *Resolver) Resolve(ctx context.Context, link string) Outcome {
	if r.cache != nil {
		if out, ok := r.cache.Get(ctx, link); ok {
			out.Method = MethodCache
			out.OriginalURL = link
			metrics.ResolveTotal.WithLabelValues(MethodCache, "success").Inc()
			return out
		}
	}

	start := r.now()
	for _, s := range r.strategies {
		target, err := s.Resolve(ctx, link)
		if err != nil {
			slog.Debug("resolve strategy failed", "strategy", s.Name(), "err", err)
			metrics.ResolveTotal.WithLabelValues(s.Name(), "error").Inc()
			continue
		}
		if target == "" || target == link {
			metrics.ResolveTotal.WithLabelValues(s.Name(), "miss").Inc()
			continue
		}

		out := Outcome{Success: true, URL: target, Method: s.Name(), OriginalURL: link}
		metrics.ResolveTotal.WithLabelValues(s.Name(), "success").Inc()
		metrics.ResolveDurationSeconds.Observe(r.now().Sub(start).Seconds())
		if r.cache != nil {
			r.cache.Set(ctx, link, out)
		}
		return out
	}

	metrics.ResolveDurationSeconds.Observe(r.now().Sub(start).Seconds())
	method := MethodNoRedirect
	if u, err := url.Parse(link); err == nil && u.Host == r.shortHost {
		method = MethodUserGuidance
	}
	metrics.ResolveTotal.WithLabelValues(method, "exhausted").Inc()
	return Outcome{Success: false, Method: method, OriginalURL: link}
}
