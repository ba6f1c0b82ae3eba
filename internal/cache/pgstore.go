package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// PGStore はキャッシュエントリをPostgreSQLのuser_cacheテーブルに永続化する。
// 複数マシンからエクスポートを実行する場合にキャッシュを共有できる。
type PGStore struct {
	db *sql.DB
}

// NewPGStore は指定のDB接続を使うPGStoreを生成する。
// user_cacheテーブルはマイグレーションで事前に作成されていること。
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Load はuser_cacheテーブルからすべてのエントリを読み込む。
func (s *PGStore) Load(ctx context.Context) (map[int64]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, email, fetched_at FROM user_cache`)
	if err != nil {
		return nil, fmt.Errorf("キャッシュテーブルの読み込みに失敗しました: %w", err)
	}
	defer rows.Close()

	entries := make(map[int64]Entry)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Identity.ID, &e.Identity.Name, &e.Identity.Email, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("キャッシュ行のスキャンに失敗しました: %w", err)
		}
		entries[e.Identity.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キャッシュ行の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// Save はエントリをuser_cacheテーブルにUPSERTする。
// トランザクション内で実行され、途中失敗時はロールバックされる。
func (s *PGStore) Save(ctx context.Context, entries map[int64]Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_cache (user_id, name, email, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			fetched_at = EXCLUDED.fetched_at`)
	if err != nil {
		return fmt.Errorf("UPSERT文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for id, e := range entries {
		if _, err := stmt.ExecContext(ctx, id, e.Identity.Name, e.Identity.Email, e.FetchedAt); err != nil {
			return fmt.Errorf("キャッシュ行の保存に失敗しました (user_id=%d): %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}
