package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeLookup はShowManyUsersの呼び出しを記録するモック。
type fakeLookup struct {
	mu    sync.Mutex
	calls [][]int64
	users map[int64]model.UserIdentity
	err   error
}

func (f *fakeLookup) ShowManyUsers(_ context.Context, ids []int64) (map[int64]model.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make([]int64, len(ids))
	copy(copied, ids)
	f.calls = append(f.calls, copied)

	if f.err != nil {
		return nil, f.err
	}

	result := make(map[int64]model.UserIdentity)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func makeUsers(ids ...int64) map[int64]model.UserIdentity {
	users := make(map[int64]model.UserIdentity, len(ids))
	for _, id := range ids {
		users[id] = model.UserIdentity{
			ID:    id,
			Name:  fmt.Sprintf("User %d", id),
			Email: fmt.Sprintf("user%d@example.com", id),
		}
	}
	return users
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	ttl := 24 * time.Hour

	tests := []struct {
		name      string
		fetchedAt time.Time
		want      bool
	}{
		{"取得直後", now, true},
		{"TTL内", now.Add(-23 * time.Hour), true},
		{"ちょうどTTL経過", now.Add(-24 * time.Hour), false},
		{"TTL超過", now.Add(-25 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry{FetchedAt: tt.fetchedAt}
			if got := IsFresh(e, now, ttl); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_FreshEntries_NoAPICall(t *testing.T) {
	lookup := &fakeLookup{users: makeUsers(1, 2)}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.entries[1] = Entry{Identity: model.UserIdentity{ID: 1, Name: "Cached 1"}, FetchedAt: now.Add(-time.Hour)}
	c.entries[2] = Entry{Identity: model.UserIdentity{ID: 2, Name: "Cached 2"}, FetchedAt: now.Add(-time.Hour)}

	result, err := c.Resolve(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if lookup.callCount() != 0 {
		t.Errorf("API呼び出し数 = %d, want 0（全件キャッシュヒット）", lookup.callCount())
	}
	if result[1].Name != "Cached 1" || result[2].Name != "Cached 2" {
		t.Errorf("キャッシュされた値が返ること: %+v", result)
	}
}

func TestResolve_StaleEntry_Refetches(t *testing.T) {
	lookup := &fakeLookup{users: makeUsers(1)}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.entries[1] = Entry{Identity: model.UserIdentity{ID: 1, Name: "Stale"}, FetchedAt: now.Add(-25 * time.Hour)}

	result, err := c.Resolve(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if lookup.callCount() != 1 {
		t.Errorf("API呼び出し数 = %d, want 1（期限切れは再取得）", lookup.callCount())
	}
	if result[1].Name != "User 1" {
		t.Errorf("再取得した値が返ること: got %q", result[1].Name)
	}
	if got := c.entries[1].FetchedAt; !got.Equal(now) {
		t.Errorf("FetchedAt = %v, want %v（再取得で更新されること）", got, now)
	}
}

func TestResolve_Bypass_IgnoresCache(t *testing.T) {
	lookup := &fakeLookup{users: makeUsers(1)}
	config := DefaultConfig()
	config.Bypass = true
	c := New(lookup, nil, newTestLogger(), config)

	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.entries[1] = Entry{Identity: model.UserIdentity{ID: 1, Name: "Cached"}, FetchedAt: now}

	result, err := c.Resolve(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if lookup.callCount() != 1 {
		t.Errorf("API呼び出し数 = %d, want 1（バイパス時は常に再取得）", lookup.callCount())
	}
	if result[1].Name != "User 1" {
		t.Errorf("再取得した値が返ること: got %q", result[1].Name)
	}
}

func TestResolve_DeduplicatesAndSkipsZeroID(t *testing.T) {
	lookup := &fakeLookup{users: makeUsers(1, 2)}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	result, err := c.Resolve(context.Background(), []int64{1, 0, 2, 1, 2, 0})
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	if lookup.callCount() != 1 {
		t.Fatalf("API呼び出し数 = %d, want 1", lookup.callCount())
	}
	if len(lookup.calls[0]) != 2 {
		t.Errorf("リクエストID数 = %d, want 2（重複とID 0を除外）", len(lookup.calls[0]))
	}
	if len(result) != 2 {
		t.Errorf("結果数 = %d, want 2", len(result))
	}
}

func TestResolve_ChunksLargeIDLists(t *testing.T) {
	const total = 250

	ids := make([]int64, 0, total)
	for i := int64(1); i <= total; i++ {
		ids = append(ids, i)
	}

	lookup := &fakeLookup{users: makeUsers(ids...)}
	config := DefaultConfig()
	config.ChunkSize = 100
	config.MaxConcurrent = 5
	c := New(lookup, nil, newTestLogger(), config)

	result, err := c.Resolve(context.Background(), ids)
	if err != nil {
		t.Fatalf("Resolve がエラーを返した: %v", err)
	}

	// 250件 → ceil(250/100) = 3チャンク
	if lookup.callCount() != 3 {
		t.Errorf("API呼び出し数 = %d, want 3", lookup.callCount())
	}
	for _, call := range lookup.calls {
		if len(call) > config.ChunkSize {
			t.Errorf("チャンクサイズ = %d, want <= %d", len(call), config.ChunkSize)
		}
	}
	if len(result) != total {
		t.Errorf("結果数 = %d, want %d", len(result), total)
	}
}

func TestResolve_LookupFailure_ReturnsPartialResolutionError(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("service unavailable")}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	result, err := c.Resolve(context.Background(), []int64{1, 2})

	var partialErr *model.PartialResolutionError
	if !errors.As(err, &partialErr) {
		t.Fatalf("エラー型 = %T, want *model.PartialResolutionError", err)
	}
	if len(partialErr.MissingIDs) != 2 {
		t.Errorf("未解決ID数 = %d, want 2", len(partialErr.MissingIDs))
	}
	if len(result) != 0 {
		t.Errorf("失敗したIDは結果に含まれないこと: %+v", result)
	}
}

func TestResolve_AbsentIDs_ReportedAsPartialResolution(t *testing.T) {
	// ID 999 は削除済みユーザーとしてレスポンスに含まれない
	lookup := &fakeLookup{users: makeUsers(1)}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	result, err := c.Resolve(context.Background(), []int64{1, 999})

	var partialErr *model.PartialResolutionError
	if !errors.As(err, &partialErr) {
		t.Fatalf("エラー型 = %T, want *model.PartialResolutionError", err)
	}
	if len(partialErr.MissingIDs) != 1 || partialErr.MissingIDs[0] != 999 {
		t.Errorf("MissingIDs = %v, want [999]", partialErr.MissingIDs)
	}

	if _, ok := result[1]; !ok {
		t.Error("ID 1 は結果に含まれること")
	}
	if _, ok := result[999]; ok {
		t.Error("レスポンスに含まれないIDは結果に存在しないこと")
	}
	if _, ok := c.entries[999]; ok {
		t.Error("未解決IDはキャッシュされないこと")
	}
}

func TestResolve_SecondCallUsesCache(t *testing.T) {
	lookup := &fakeLookup{users: makeUsers(1, 2, 3)}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Resolve(context.Background(), []int64{1, 2, 3}); err != nil {
		t.Fatalf("1回目のResolve がエラーを返した: %v", err)
	}
	if _, err := c.Resolve(context.Background(), []int64{1, 2, 3}); err != nil {
		t.Fatalf("2回目のResolve がエラーを返した: %v", err)
	}

	if lookup.callCount() != 1 {
		t.Errorf("API呼び出し数 = %d, want 1（2回目は全件キャッシュヒット）", lookup.callCount())
	}
}

func TestResolve_ConcurrentCalls_NoDuplicateFetch(t *testing.T) {
	lookup := &fakeLookup{users: makeUsers(1, 2, 3)}
	c := New(lookup, nil, newTestLogger(), DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(context.Background(), []int64{1, 2, 3}); err != nil {
				t.Errorf("Resolve がエラーを返した: %v", err)
			}
		}()
	}
	wg.Wait()

	// 解決処理は直列化されるため、最初の1回のみAPIを呼び出す
	if lookup.callCount() != 1 {
		t.Errorf("API呼び出し数 = %d, want 1", lookup.callCount())
	}
}
