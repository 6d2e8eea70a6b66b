package douyin

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrNoRenditions 指视频详情里找不到任何可下载的地址。
var ErrNoRenditions = errors.New("no playable renditions")

// Rendition 是选档后的一个可下载档位。
type Rendition struct {
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameRate  int    `json:"frame_rate"`
	BitRate    int64  `json:"bit_rate"`
	SizeBytes  int64  `json:"size_bytes"`
	QualityTag string `json:"quality_tag"`
	Format     string `json:"format"`
}

// Selector 把抖音详情里的多档地址整理成去重、排好序的档位列表。
//
// 取数优先级（不混用，取到哪层用哪层）：
//  1. video.bit_rate：正常情况下的多档转码列表
//  2. video.download_addr：老视频没有 bit_rate 时的下载地址
//  3. video.play_addr：最后的兜底
type Selector struct {
	platformHost string
	now          func() time.Time
}

func NewSelector(platformHost string) *Selector {
	return &Selector{platformHost: platformHost, now: time.Now}
}

func (s *Selector) Select(d *Detail) ([]Rendition, error) {
	var out []Rendition

	// play_addr.uri 常常就是 video_id，候选地址里抠不出参数时拿它兜底
	fallbackID := d.Video.PlayAddr.URI

	for _, item := range d.Video.BitRate {
		u := s.pickURL(item.PlayAddr, fallbackID)
		if u == "" {
			continue
		}
		out = append(out, Rendition{
			URL:        u,
			Width:      item.PlayAddr.Width,
			Height:     item.PlayAddr.Height,
			FrameRate:  item.FPS,
			BitRate:    item.BitRate,
			SizeBytes:  item.PlayAddr.DataSize,
			QualityTag: QualityTag(item.PlayAddr.Width, item.PlayAddr.Height),
			Format:     item.Format,
		})
	}

	if len(out) == 0 {
		for _, addr := range []AddrInfo{d.Video.DownloadAddr, d.Video.PlayAddr} {
			u := s.pickURL(addr, firstNonEmpty(addr.URI, fallbackID))
			if u == "" {
				continue
			}
			out = append(out, Rendition{
				URL:        u,
				Width:      addr.Width,
				Height:     addr.Height,
				SizeBytes:  addr.DataSize,
				QualityTag: QualityTag(addr.Width, addr.Height),
				Format:     "mp4",
			})
			break
		}
	}

	if len(out) == 0 {
		return nil, ErrNoRenditions
	}

	sort.SliceStable(out, func(i, j int) bool {
		li, lj := longSide(out[i].Width, out[i].Height), longSide(out[j].Width, out[j].Height)
		if li != lj {
			return li > lj
		}
		return out[i].FrameRate > out[j].FrameRate
	})

	// 同一个地址可能在多档里重复出现，按 URL 去重后保留排序靠前的那个
	seen := make(map[string]struct{}, len(out))
	deduped := out[:0]
	for _, r := range out {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		deduped = append(deduped, r)
	}

	return deduped, nil
}

// 路径段里形如 aweme_id 的 18~19 位数字
var pathIDRe = regexp.MustCompile(`^\d{18,19}$`)

// pickURL 从一组候选地址里挑一个：官方域名的直链已经是规范形式，直接用；
// 否则把列表第一个地址改写成规范播放地址。列表为空时该候选作废。
func (s *Selector) pickURL(addr AddrInfo, fallbackID string) string {
	for _, u := range addr.URLList {
		if strings.HasPrefix(u, "https://"+s.platformHost) {
			return u
		}
	}
	if len(addr.URLList) > 0 {
		return s.canonicalPlayURL(addr.URLList[0], fallbackID)
	}
	return ""
}

// canonicalPlayURL 把任意 CDN 地址改写成官方播放端点：从原地址的查询串里
// 提取 video_id/file_id/sign/ts，按固定模板重新拼装。提不出 video_id 时
// 依次退到调用方已知的 id、路径里的数字 id、最后是 "default" 占位；
// 原地址解析失败用 "error" 占位。无论输入多烂都会给出一个规范地址。
func (s *Selector) canonicalPlayURL(raw, fallbackID string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return s.playURL("error", "", "", s.nowTS())
	}
	q := u.Query()

	id := q.Get("video_id")
	if id == "" {
		switch fallbackID {
		case "", "default", "error":
			// 占位 uri 不能当 id 用
		default:
			id = fallbackID
		}
	}
	if id == "" {
		for _, part := range strings.Split(u.Path, "/") {
			if pathIDRe.MatchString(part) {
				id = part
				break
			}
		}
	}
	if id == "" {
		return s.playURL("default", "", "", s.nowTS())
	}

	ts := q.Get("ts")
	if ts == "" {
		ts = s.nowTS()
	}
	return s.playURL(id, q.Get("file_id"), q.Get("sign"), ts)
}

func (s *Selector) playURL(id, fileID, sign, ts string) string {
	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(s.platformHost)
	b.WriteString("/aweme/v1/play/?video_id=")
	b.WriteString(url.QueryEscape(id))
	if fileID != "" {
		b.WriteString("&file_id=")
		b.WriteString(url.QueryEscape(fileID))
	}
	if sign != "" {
		b.WriteString("&sign=")
		b.WriteString(url.QueryEscape(sign))
	}
	b.WriteString("&ts=")
	b.WriteString(ts)
	b.WriteString("&is_play_url=1&source=PackSourceEnum_AWEME_DETAIL")
	return b.String()
}

func (s *Selector) nowTS() string {
	return fmt.Sprintf("%d", s.now().Unix())
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// QualityTag 按长边给档位起一个人类可读的名字。
func QualityTag(width, height int) string {
	side := longSide(width, height)
	switch {
	case side >= 3840:
		return "4K"
	case side >= 2560:
		return "2K"
	case side >= 1920:
		return "1080p"
	case side >= 1280:
		return "720p"
	case side >= 854:
		return "480p"
	default:
		return fmt.Sprintf("%dp", side)
	}
}

func longSide(w, h int) int {
	if w > h {
		return w
	}
	return h
}
