package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testOptions(shortHost string) Options {
	return Options{
		ShortHost:    shortHost,
		PlatformHost: shortHost,
		UserAgent:    "test-agent",
		Timeout:      2 * time.Second,
		ProbeTimeout: 500 * time.Millisecond,
	}
}

func TestResolveHeadLocation(t *testing.T) {
	target := "https://www.douyin.com/video/7342156789012345678?from=share"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	r := New(testOptions("v.douyin.com"))
	out := r.Resolve(context.Background(), srv.URL+"/abc123")

	if !out.Success {
		t.Fatalf("Success = false, method = %q", out.Method)
	}
	if out.Method != "head_location" {
		t.Errorf("Method = %q, want head_location", out.Method)
	}
	if out.URL != target {
		t.Errorf("URL = %q, want %q", out.URL, target)
	}
	if out.OriginalURL != srv.URL+"/abc123" {
		t.Errorf("OriginalURL = %q", out.OriginalURL)
	}
}

func TestResolveFallsBackToGet(t *testing.T) {
	target := "https://www.douyin.com/video/7342156789012345678"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 模拟只认 GET 的短链服务
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	r := New(testOptions("v.douyin.com"))
	out := r.Resolve(context.Background(), srv.URL+"/abc123")

	if !out.Success {
		t.Fatalf("Success = false, method = %q", out.Method)
	}
	if out.Method != "get_location" {
		t.Errorf("Method = %q, want get_location", out.Method)
	}
	if out.URL != target {
		t.Errorf("URL = %q, want %q", out.URL, target)
	}
}

func TestResolveRelativeLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/video/7342156789012345678")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	r := New(testOptions("v.douyin.com"))
	out := r.Resolve(context.Background(), srv.URL+"/abc123")

	if !out.Success {
		t.Fatalf("Success = false, method = %q", out.Method)
	}
	if want := srv.URL + "/video/7342156789012345678"; out.URL != want {
		t.Errorf("URL = %q, want %q (relative Location resolved)", out.URL, want)
	}
}

func TestResolveExhaustedPlainHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// shortHost 跟请求域名不一致，探测和引导逻辑都不该触发
	r := New(testOptions("v.douyin.com"))
	out := r.Resolve(context.Background(), srv.URL+"/nothing")

	if out.Success {
		t.Fatal("Success = true, want failure")
	}
	if out.Method != MethodNoRedirect {
		t.Errorf("Method = %q, want %q", out.Method, MethodNoRedirect)
	}
	if out.URL != "" {
		t.Errorf("URL = %q, want empty", out.URL)
	}
}

func TestResolveExhaustedShortHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	r := New(testOptions(u.Host))
	out := r.Resolve(context.Background(), srv.URL+"/abc123")

	if out.Success {
		t.Fatal("Success = true, want failure")
	}
	if out.Method != MethodUserGuidance {
		t.Errorf("Method = %q, want %q", out.Method, MethodUserGuidance)
	}
}

func TestResolvePatternProbe(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	// 短链本身挂了（404 且无 Location），但 /video/<token> 直接可达
	mux.HandleFunc("/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/video/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := New(testOptions(u.Host))
	out := r.Resolve(context.Background(), srv.URL+"/abc123")

	if !out.Success {
		t.Fatalf("Success = false, method = %q", out.Method)
	}
	if out.Method != "pattern_probe" {
		t.Errorf("Method = %q, want pattern_probe", out.Method)
	}
	if want := srv.URL + "/video/abc123"; out.URL != want {
		t.Errorf("URL = %q, want %q", out.URL, want)
	}
}

func TestResolveThirdParty(t *testing.T) {
	target := "https://www.douyin.com/video/7342156789012345678"
	unshortener := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"requested_url":"x","expanded_url":"` + target + `"}`))
	}))
	defer unshortener.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	opts := testOptions("v.douyin.com")
	opts.UnshortenServices = []string{unshortener.URL + "/?url="}
	r := New(opts)
	out := r.Resolve(context.Background(), dead.URL+"/abc123")

	if !out.Success {
		t.Fatalf("Success = false, method = %q", out.Method)
	}
	if out.Method != "third_party" {
		t.Errorf("Method = %q, want third_party", out.Method)
	}
	if out.URL != target {
		t.Errorf("URL = %q, want %q", out.URL, target)
	}
}

func TestResolveCacheHit(t *testing.T) {
	target := "https://www.douyin.com/video/7342156789012345678"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	local, err := NewLocalCache(100, time.Minute)
	if err != nil {
		t.Fatalf("NewLocalCache: %v", err)
	}
	defer local.Close()

	opts := testOptions("v.douyin.com")
	opts.Cache = NewCache(nil, local, time.Minute)
	r := New(opts)

	link := srv.URL + "/abc123"
	first := r.Resolve(context.Background(), link)
	if !first.Success || first.Method != "head_location" {
		t.Fatalf("first = %+v", first)
	}

	// ristretto 写入是异步的，等缓冲落盘
	deadline := time.Now().Add(2 * time.Second)
	var second Outcome
	for {
		second = r.Resolve(context.Background(), link)
		if second.Method == MethodCache || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if second.Method != MethodCache {
		t.Fatalf("second.Method = %q, want %q", second.Method, MethodCache)
	}
	if second.URL != target {
		t.Errorf("second.URL = %q, want %q", second.URL, target)
	}
}
