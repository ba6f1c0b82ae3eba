package cache

import "context"

// Store はキャッシュエントリの永続化インターフェース。
// JSONファイルまたはPostgreSQLの実装を選択できる。
type Store interface {
	// Load は永続化されたエントリをすべて読み込む。
	// 保存先が存在しない場合は空のマップを返す。
	Load(ctx context.Context) (map[int64]Entry, error)
	// Save はエントリを保存する。同一ユーザーIDの既存エントリは上書きされる。
	Save(ctx context.Context, entries map[int64]Entry) error
}
