package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window 是解析入口的配额窗口：滚动 window 内最多 limit 次。
//
// Check 只做判定不占配额；Record 由调用方在真正发起解析时单独调用，
// 这样判定后被放弃的请求不会白白烧掉一次额度。
// 读-改-写不要求严格线性化：这是 UX 节流，不是安全边界。
type Window struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

type Decision struct {
	Allowed bool
	// RemainingSeconds 仅在拒绝时有意义：距最早一条记录滑出窗口还差几秒（向上取整）
	RemainingSeconds int
}

// Store 持久化某个 key 下的毫秒时间戳序列（JSON 数组编码）
type Store interface {
	Load(ctx context.Context, key string) ([]int64, error)
	Save(ctx context.Context, key string, stamps []int64) error
}

func NewWindow(store Store, limit int, window time.Duration) *Window {
	return &Window{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Check 判定 key 当前是否还有配额。判定前先把窗口外的旧记录剪掉并回写，
// 重启/重连后恢复出来的旧窗口也因此经过同样的剪枝。
func (w *Window) Check(ctx context.Context, key string) (Decision, error) {
	now := w.now().UnixMilli()
	stamps, err := w.store.Load(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	pruned := prune(stamps, now, w.window.Milliseconds())
	if len(pruned) != len(stamps) {
		if err := w.store.Save(ctx, key, pruned); err != nil {
			return Decision{}, err
		}
	}

	if len(pruned) >= w.limit {
		closesAt := pruned[0] + w.window.Milliseconds()
		remaining := (closesAt - now + 999) / 1000 // 毫秒转秒，向上取整
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: false, RemainingSeconds: int(remaining)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Record 占用一次配额。只在调用方确定要发起解析时调用。
func (w *Window) Record(ctx context.Context, key string) error {
	now := w.now().UnixMilli()
	stamps, err := w.store.Load(ctx, key)
	if err != nil {
		return err
	}
	pruned := prune(stamps, now, w.window.Milliseconds())
	pruned = append(pruned, now)
	return w.store.Save(ctx, key, pruned)
}

func prune(stamps []int64, nowMS, windowMS int64) []int64 {
	kept := make([]int64, 0, len(stamps))
	for _, ts := range stamps {
		if nowMS-ts < windowMS {
			kept = append(kept, ts)
		}
	}
	return kept
}

// RedisStore 把时间戳数组 JSON 编码后存到固定前缀的 key 下。
// TTL 给两倍窗口：过期自动清掉，不需要后台清理任务。
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, window time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    2 * window,
	}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]int64, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stamps []int64
	if err := json.Unmarshal(raw, &stamps); err != nil {
		// 坏数据当成空窗口处理，下一次 Save 会覆盖掉
		return nil, nil
	}
	return stamps, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, stamps []int64) error {
	raw, err := json.Marshal(stamps)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err()
}

// MemStore 进程内实现，测试和无 Redis 的本地运行用
type MemStore struct {
	mu   sync.Mutex
	data map[string][]int64
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]int64)}
}

func (s *MemStore) Load(_ context.Context, key string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.data[key]...), nil
}

func (s *MemStore) Save(_ context.Context, key string, stamps []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]int64(nil), stamps...)
	return nil
}
