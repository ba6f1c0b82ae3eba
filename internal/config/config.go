// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Zendesk API
	ZendeskBaseURL  string
	ZendeskEmail    string
	ZendeskAPIToken string

	// HTTP
	HTTPTimeout       time.Duration
	MaxConcurrent     int
	RequestsPerMinute int
	RetryMaxAttempts  int

	// User cache
	UserCacheTTL     time.Duration
	UserCacheFile    string
	CacheDatabaseURL string

	// Metrics
	PushgatewayURL string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.ZendeskBaseURL = os.Getenv("ZENDESK_BASE_URL")
	if cfg.ZendeskBaseURL == "" {
		missing = append(missing, "ZENDESK_BASE_URL")
	}

	cfg.ZendeskEmail = os.Getenv("ZENDESK_EMAIL")
	if cfg.ZendeskEmail == "" {
		missing = append(missing, "ZENDESK_EMAIL")
	}

	cfg.ZendeskAPIToken = os.Getenv("ZENDESK_API_TOKEN")
	if cfg.ZendeskAPIToken == "" {
		missing = append(missing, "ZENDESK_API_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg.MaxConcurrent = getEnvInt("MAX_CONCURRENT_REQUESTS", 5)
	cfg.RequestsPerMinute = getEnvInt("REQUESTS_PER_MINUTE", 400)
	cfg.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", 3)
	cfg.UserCacheTTL = getEnvDuration("USER_CACHE_TTL", 24*time.Hour)
	cfg.UserCacheFile = getEnvString("USER_CACHE_FILE", "user_cache.json")
	cfg.CacheDatabaseURL = getEnvString("CACHE_DATABASE_URL", "")
	cfg.PushgatewayURL = getEnvString("PUSHGATEWAY_URL", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
