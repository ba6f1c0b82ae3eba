// Package cache はユーザー情報の24時間キャッシュと一括解決を提供する。
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
)

// Entry はキャッシュされたユーザー情報と取得時刻の組。
type Entry struct {
	Identity  model.UserIdentity `json:"identity"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// IsFresh はエントリがTTL内かどうかを判定する。
// 経過時間がちょうどTTLの場合は期限切れとして扱う。
func IsFresh(e Entry, now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// UserLookup はユーザー情報の一括取得インターフェース。
// テスト時にモックに差し替え可能。
type UserLookup interface {
	ShowManyUsers(ctx context.Context, ids []int64) (map[int64]model.UserIdentity, error)
}

// Config はキャッシュの設定パラメータ。
type Config struct {
	// TTL はキャッシュエントリの有効期間（デフォルト: 24時間）。
	TTL time.Duration
	// Bypass がtrueの場合、既存エントリを無視してすべて再取得する。
	Bypass bool
	// ChunkSize は1回のAPI呼び出しで解決するIDの最大数。
	ChunkSize int
	// MaxConcurrent はチャンク解決の最大並列数。
	MaxConcurrent int
}

// DefaultConfig はデフォルトのキャッシュ設定を返す。
func DefaultConfig() Config {
	return Config{
		TTL:           24 * time.Hour,
		ChunkSize:     100,
		MaxConcurrent: 5,
	}
}

// UserCache はユーザーIDから表示名・メールアドレスへの解決を、
// TTL付きキャッシュと一括取得APIの組み合わせで行う。
// 解決済みエントリは永続ストアに保存され、次回実行時に再利用される。
type UserCache struct {
	lookup UserLookup
	store  Store
	logger *slog.Logger
	config Config

	mu      sync.RWMutex
	entries map[int64]Entry

	// resolveMu は解決処理全体を直列化し、同一IDの二重取得を防ぐ。
	resolveMu sync.Mutex

	now func() time.Time
}

// New はUserCacheの新しいインスタンスを生成する。
// storeはnil可（永続化なしで動作する）。
func New(lookup UserLookup, store Store, logger *slog.Logger, config Config) *UserCache {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 100
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &UserCache{
		lookup:  lookup,
		store:   store,
		logger:  logger,
		config:  config,
		entries: make(map[int64]Entry),
		now:     time.Now,
	}
}

// LoadPersisted は永続ストアからエントリを読み込む。
// Bypassが有効な場合、またはストアがない場合は何もしない。
func (c *UserCache) LoadPersisted(ctx context.Context) error {
	if c.store == nil || c.config.Bypass {
		return nil
	}

	entries, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.logger.Info("ユーザーキャッシュを読み込みました",
		slog.Int("entry_count", len(entries)),
	)
	return nil
}

// SavePersisted は現在のエントリを永続ストアに保存する。
// ストアがない場合は何もしない。
func (c *UserCache) SavePersisted(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.RLock()
	snapshot := make(map[int64]Entry, len(c.entries))
	for id, e := range c.entries {
		snapshot[id] = e
	}
	c.mu.RUnlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		return err
	}

	c.logger.Info("ユーザーキャッシュを保存しました",
		slog.Int("entry_count", len(snapshot)),
	)
	return nil
}

// Resolve は指定されたユーザーIDを一括解決する。
// TTL内のキャッシュエントリはAPI呼び出しなしで返し、
// 残りをChunkSize単位の一括取得APIで並列に解決する。
// チャンクの失敗、および削除済みユーザー等でAPIレスポンスに含まれなかったIDは
// 結果マップに存在せず、該当IDを列挙した非致命的なPartialResolutionErrorを返す。
// 解決できたユーザーのみを含むマップは常に有効である。
func (c *UserCache) Resolve(ctx context.Context, ids []int64) (map[int64]model.UserIdentity, error) {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	now := c.now()

	// 重複IDとID 0（未割り当て）を除外
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	result := make(map[int64]model.UserIdentity, len(unique))
	var misses []int64

	c.mu.RLock()
	for _, id := range unique {
		if e, ok := c.entries[id]; ok && !c.config.Bypass && IsFresh(e, now, c.config.TTL) {
			result[id] = e.Identity
			continue
		}
		misses = append(misses, id)
	}
	c.mu.RUnlock()

	c.logger.Info("ユーザー解決を開始します",
		slog.Int("requested", len(unique)),
		slog.Int("cache_hits", len(result)),
		slog.Int("cache_misses", len(misses)),
	)

	if len(misses) == 0 {
		return result, nil
	}

	// 決定的なチャンク分割のためIDをソートする
	sort.Slice(misses, func(i, j int) bool { return misses[i] < misses[j] })

	chunks := make([][]int64, 0, (len(misses)+c.config.ChunkSize-1)/c.config.ChunkSize)
	for i := 0; i < len(misses); i += c.config.ChunkSize {
		end := i + c.config.ChunkSize
		if end > len(misses) {
			end = len(misses)
		}
		chunks = append(chunks, misses[i:end])
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, c.config.MaxConcurrent)
	var wg sync.WaitGroup

	var resMu sync.Mutex
	fetched := make(map[int64]model.UserIdentity)
	var failedIDs []int64

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）
		go func(chunk []int64) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			users, err := c.lookup.ShowManyUsers(ctx, chunk)
			if err != nil {
				c.logger.Warn("ユーザー一括取得に失敗しました",
					slog.Int("chunk_size", len(chunk)),
					slog.String("error", err.Error()),
				)
				resMu.Lock()
				failedIDs = append(failedIDs, chunk...)
				resMu.Unlock()
				return
			}

			resMu.Lock()
			for id, u := range users {
				fetched[id] = u
			}
			resMu.Unlock()
		}(chunk)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// 取得成功したユーザーをキャッシュに反映
	c.mu.Lock()
	for id, u := range fetched {
		c.entries[id] = Entry{Identity: u, FetchedAt: now}
		result[id] = u
	}
	c.mu.Unlock()

	// チャンク失敗分も、レスポンスに含まれなかった削除済みユーザー等も
	// 等しく「未解決」として報告する。missesはソート済みのため列挙順も決定的。
	var unresolved []int64
	for _, id := range misses {
		if _, ok := fetched[id]; !ok {
			unresolved = append(unresolved, id)
		}
	}

	c.logger.Info("ユーザー解決が完了しました",
		slog.Int("resolved", len(result)),
		slog.Int("api_calls", len(chunks)),
		slog.Int("failed_chunks_ids", len(failedIDs)),
		slog.Int("unresolved_ids", len(unresolved)),
	)

	if len(unresolved) > 0 {
		return result, model.NewPartialResolutionError(unresolved)
	}
	return result, nil
}

// Len は現在のキャッシュエントリ数を返す。
func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
