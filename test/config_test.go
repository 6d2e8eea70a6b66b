package test

import (
	"testing"
	"time"

	"dydl.local/internal/platform/config"
)

func TestConfigLoad_UsesDefaults(t *testing.T) {
	t.Setenv("ADDR", "")
	t.Setenv("WRITE_TIMEOUT", "")
	t.Setenv("SHORT_HOST", "")
	t.Setenv("RESOLVE_LIMIT", "")
	t.Setenv("RESOLVE_WINDOW", "")
	t.Setenv("UPSTREAM_API_BASE", "")

	cfg := config.Load()

	if cfg.Addr != ":9080" {
		t.Fatalf("Addr: got %q, want %q", cfg.Addr, ":9080")
	}
	// WriteTimeout 必须盖得住一次完整的代理下载
	if cfg.WriteTimeout != 10*time.Minute {
		t.Fatalf("WriteTimeout: got %v, want %v", cfg.WriteTimeout, 10*time.Minute)
	}
	if cfg.ShortHost != "v.douyin.com" {
		t.Fatalf("ShortHost: got %q", cfg.ShortHost)
	}
	if cfg.PlatformHost != "www.douyin.com" {
		t.Fatalf("PlatformHost: got %q", cfg.PlatformHost)
	}
	if cfg.ResolveLimit != 3 {
		t.Fatalf("ResolveLimit: got %d, want 3", cfg.ResolveLimit)
	}
	if cfg.ResolveWindow != time.Minute {
		t.Fatalf("ResolveWindow: got %v, want %v", cfg.ResolveWindow, time.Minute)
	}
	if len(cfg.UnshortenServices) == 0 {
		t.Fatal("UnshortenServices: empty")
	}
	if cfg.StatsEnabled {
		t.Fatal("StatsEnabled: want false by default")
	}
}

func TestConfigLoad_ReadsEnv(t *testing.T) {
	t.Setenv("ADDR", ":18080")
	t.Setenv("WRITE_TIMEOUT", "6m")
	t.Setenv("SHORT_HOST", "v.example.com")
	t.Setenv("RESOLVE_LIMIT", "5")
	t.Setenv("RESOLVE_WINDOW", "90s")
	t.Setenv("UNSHORTEN_SERVICES", "https://a.example/u?url=,https://b.example/u?url=")
	t.Setenv("UPSTREAM_API_BASE", "https://meta.example.com/")

	cfg := config.Load()

	if cfg.Addr != ":18080" {
		t.Fatalf("Addr: got %q, want %q", cfg.Addr, ":18080")
	}
	if cfg.WriteTimeout != 6*time.Minute {
		t.Fatalf("WriteTimeout: got %v, want %v", cfg.WriteTimeout, 6*time.Minute)
	}
	if cfg.ShortHost != "v.example.com" {
		t.Fatalf("ShortHost: got %q", cfg.ShortHost)
	}
	if cfg.ResolveLimit != 5 {
		t.Fatalf("ResolveLimit: got %d, want 5", cfg.ResolveLimit)
	}
	if cfg.ResolveWindow != 90*time.Second {
		t.Fatalf("ResolveWindow: got %v", cfg.ResolveWindow)
	}
	if len(cfg.UnshortenServices) != 2 {
		t.Fatalf("UnshortenServices: got %v", cfg.UnshortenServices)
	}
	// 末尾斜杠被归一化掉，拼接 endpoint 时不会出现双斜杠
	if cfg.UpstreamAPIBase != "https://meta.example.com" {
		t.Fatalf("UpstreamAPIBase: got %q", cfg.UpstreamAPIBase)
	}
}
