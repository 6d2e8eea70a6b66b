package test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"dydl.local/internal/platform/ratelimit"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			redisDB = n
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	t.Cleanup(func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("skip: redis not available at %s: %v", redisAddr, err)
	}
	return client
}

func TestLimiterSlidingWindow(t *testing.T) {
	client := newTestRedis(t)
	limiter := ratelimit.NewLimiter(client)

	key := fmt.Sprintf("test:rl:%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Del(ctx, key).Err()
	})

	window := 2 * time.Second
	limit := 3

	callAllow := func(member string) (bool, time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()

		allowed, retryAfter, err := limiter.Allow(ctx, key, limit, window, member)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		return allowed, retryAfter
	}

	// 前 limit 次应放行
	for i := 0; i < limit; i++ {
		allowed, _ := callAllow(fmt.Sprintf("%d-%d", time.Now().UnixNano(), i))
		if !allowed {
			t.Fatalf("expected allowed at attempt %d", i+1)
		}
	}

	// 第 limit+1 次应被拒绝
	allowed, retryAfter := callAllow(fmt.Sprintf("%d-over", time.Now().UnixNano()))
	if allowed {
		t.Fatalf("expected denied at attempt %d", limit+1)
	}
	if retryAfter <= 0 || retryAfter > window {
		t.Fatalf("unexpected retryAfter: %v (window=%v)", retryAfter, window)
	}

	// 等窗口滑过后应该重新放行
	time.Sleep(retryAfter + 200*time.Millisecond)
	allowed, _ = callAllow(fmt.Sprintf("%d-after", time.Now().UnixNano()))
	if !allowed {
		t.Fatalf("expected allowed after waiting, retryAfter=%v", retryAfter)
	}
}

func TestWindowRedisStore(t *testing.T) {
	client := newTestRedis(t)

	prefix := fmt.Sprintf("test:rq:%d:", time.Now().UnixNano())
	key := "10.0.0.1"
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Del(ctx, prefix+key).Err()
	})

	store := ratelimit.NewRedisStore(client, prefix, 2*time.Second)
	w := ratelimit.NewWindow(store, 2, 2*time.Second)
	ctx := context.Background()

	// Check 本身不消耗配额
	for i := 0; i < 5; i++ {
		d, err := w.Check(ctx, key)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("Check %d: denied before any Record", i+1)
		}
	}

	for i := 0; i < 2; i++ {
		if err := w.Record(ctx, key); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	d, err := w.Check(ctx, key)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected denied after limit records")
	}
	if d.RemainingSeconds <= 0 || d.RemainingSeconds > 2 {
		t.Fatalf("RemainingSeconds = %d", d.RemainingSeconds)
	}

	// 窗口滑过后恢复
	time.Sleep(time.Duration(d.RemainingSeconds)*time.Second + 200*time.Millisecond)
	d, err = w.Check(ctx, key)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected allowed after window slid")
	}
}
