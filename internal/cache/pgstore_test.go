package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/database"
	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
)

// setupTestDB はテスト用DB接続を確立しマイグレーションを適用する。
// TEST_DATABASE_URLが未設定、またはDBに接続できない場合はテストをスキップする。
func setupTestDB(t *testing.T) *PGStore {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップします")
	}

	db, err := database.Open(databaseURL)
	if err != nil {
		t.Fatalf("Open がエラーを返した: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("データベースに接続できないためスキップします: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(databaseURL); err != nil {
		t.Fatalf("RunMigrations がエラーを返した: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM user_cache`); err != nil {
		t.Fatalf("failed to clean user_cache: %v", err)
	}

	return NewPGStore(db)
}

func TestPGStore_SaveAndLoad_RoundTrip(t *testing.T) {
	store := setupTestDB(t)

	fetchedAt := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	entries := map[int64]Entry{
		1: {Identity: model.UserIdentity{ID: 1, Name: "Alice Martin", Email: "alice@example.com"}, FetchedAt: fetchedAt},
		2: {Identity: model.UserIdentity{ID: 2, Name: "Benoît Durand", Email: "benoit@example.com"}, FetchedAt: fetchedAt},
	}

	if err := store.Save(context.Background(), entries); err != nil {
		t.Fatalf("Save がエラーを返した: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("エントリ数 = %d, want 2", len(loaded))
	}
	if loaded[1].Identity.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", loaded[1].Identity.Email, "alice@example.com")
	}
	if !loaded[1].FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", loaded[1].FetchedAt, fetchedAt)
	}
}

func TestPGStore_Save_UpsertsExistingRows(t *testing.T) {
	store := setupTestDB(t)

	fetchedAt := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

	first := map[int64]Entry{
		1: {Identity: model.UserIdentity{ID: 1, Name: "Old Name", Email: "old@example.com"}, FetchedAt: fetchedAt},
	}
	if err := store.Save(context.Background(), first); err != nil {
		t.Fatalf("Save がエラーを返した: %v", err)
	}

	second := map[int64]Entry{
		1: {Identity: model.UserIdentity{ID: 1, Name: "New Name", Email: "new@example.com"}, FetchedAt: fetchedAt.Add(time.Hour)},
	}
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("Save がエラーを返した: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("エントリ数 = %d, want 1", len(loaded))
	}
	if loaded[1].Identity.Name != "New Name" {
		t.Errorf("Name = %q, want %q（UPSERTで更新されること）", loaded[1].Identity.Name, "New Name")
	}
}
