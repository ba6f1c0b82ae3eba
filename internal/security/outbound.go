// Package security は外部API呼び出しのURL検証とHTTPクライアント生成を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は外部API呼び出しで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// ページネーションの継続URL（next_page）はリモートのレスポンスボディ由来であり、
// 盲目的に辿るとリクエスト先を外部に制御されるため、safeurlにより
// プライベートIP、ループバック、リンクローカル、メタデータIPへの
// リクエストをDialerレベルでブロックする。
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateBaseURL はAPIベースURLの形式を検証する。
// スキームがhttp/https以外、またはホストが空の場合はエラーを返す。
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	if parsed.Hostname() == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	return nil
}

// ValidateSameHost はリモートから返された継続URLが設定済みAPIホストに
// 留まっていることを検証する。ホストが異なる場合はエラーを返す。
func ValidateSameHost(rawURL string, base *url.URL) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid continuation URL: %w", err)
	}

	if !isAllowedScheme(strings.ToLower(parsed.Scheme)) {
		return fmt.Errorf("disallowed scheme in continuation URL: %s", parsed.Scheme)
	}

	if !strings.EqualFold(parsed.Host, base.Host) {
		return fmt.Errorf("continuation URL host %q does not match API host %q", parsed.Host, base.Host)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}
