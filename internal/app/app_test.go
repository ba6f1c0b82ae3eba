package app

import (
	"io"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ZENDESK_BASE_URL", "https://example.zendesk.com")
	t.Setenv("ZENDESK_EMAIL", "agent@example.com")
	t.Setenv("ZENDESK_API_TOKEN", "test-token")
}

func TestInit_LoadsConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Init(io.Discard)
	if err != nil {
		t.Fatalf("Init がエラーを返した: %v", err)
	}
	if cfg.ZendeskBaseURL != "https://example.zendesk.com" {
		t.Errorf("ZendeskBaseURL = %q", cfg.ZendeskBaseURL)
	}
}

func TestInit_MissingRequiredEnv_ReturnsError(t *testing.T) {
	t.Setenv("ZENDESK_BASE_URL", "")
	t.Setenv("ZENDESK_EMAIL", "")
	t.Setenv("ZENDESK_API_TOKEN", "")

	if _, err := Init(io.Discard); err == nil {
		t.Fatal("必須環境変数が未設定の場合はエラーを返すこと")
	}
}

func TestRun_InvalidArgs_ReturnsError(t *testing.T) {
	if err := Run(io.Discard, []string{"--bogus"}); err == nil {
		t.Fatal("サポート外の引数はエラーを返すこと")
	}
}

func TestRun_MissingConfig_ReturnsError(t *testing.T) {
	t.Setenv("ZENDESK_BASE_URL", "")
	t.Setenv("ZENDESK_EMAIL", "")
	t.Setenv("ZENDESK_API_TOKEN", "")

	if err := Run(io.Discard, nil); err == nil {
		t.Fatal("設定が不完全な場合はエラーを返すこと")
	}
}

func TestRun_InvalidBaseURLScheme_ReturnsError(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ZENDESK_BASE_URL", "ftp://example.zendesk.com")

	if err := Run(io.Discard, nil); err == nil {
		t.Fatal("不正なスキームのベースURLはエラーを返すこと")
	}
}
