package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FileStore はキャッシュエントリをJSONファイルに永続化する。
// ファイル形式はユーザーIDをキーとしたオブジェクト。
type FileStore struct {
	path string
}

// NewFileStore は指定パスのFileStoreを生成する。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load はJSONファイルからエントリを読み込む。
// ファイルが存在しない場合は空のマップを返す。
func (s *FileStore) Load(_ context.Context) (map[int64]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[int64]Entry), nil
		}
		return nil, fmt.Errorf("キャッシュファイルの読み込みに失敗しました: %w", err)
	}

	// JSONのオブジェクトキーは文字列のため、ID文字列をキーに使う
	raw := make(map[string]Entry)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("キャッシュファイルの解析に失敗しました: %w", err)
	}

	entries := make(map[int64]Entry, len(raw))
	for key, e := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("キャッシュファイルに不正なユーザーIDが含まれています: %q", key)
		}
		entries[id] = e
	}

	return entries, nil
}

// Save はエントリをJSONファイルに保存する。
// 一時ファイルへ書き込んだ後にリネームすることで、途中失敗時の破損を防ぐ。
func (s *FileStore) Save(_ context.Context, entries map[int64]Entry) error {
	raw := make(map[string]Entry, len(entries))
	for id, e := range entries {
		raw[strconv.FormatInt(id, 10)] = e
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("キャッシュのシリアライズに失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("キャッシュファイルの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("キャッシュファイルのクローズに失敗しました: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("キャッシュファイルの置き換えに失敗しました: %w", err)
	}

	return nil
}
