// Package zendesk はZendesk REST APIのクライアントを提供する。
// チケット一覧、コメント一覧、ユーザー一括取得、認証確認のみをサポートする。
package zendesk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
	"github.com/VScristianlazar/zendesk-api-integration/internal/monitor"
	"github.com/VScristianlazar/zendesk-api-integration/internal/security"
)

const (
	// perPage は一覧系エンドポイントの1ページあたりの取得件数。
	perPage = 100
	// MaxUsersPerRequest はユーザー一括取得の1リクエストあたりの最大ID数。
	MaxUsersPerRequest = 100
	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 20 << 20
	// defaultMaxAttempts は一時的エラーに対する最大試行回数（初回を含む）。
	defaultMaxAttempts = 3
	// defaultRetryDelay は指数バックオフの初回遅延。以降2倍ずつ増加する。
	defaultRetryDelay = 500 * time.Millisecond

	userAgent = "zendesk-export/1.0"
)

// Credentials はZendesk APIトークン認証の資格情報を保持する。
type Credentials struct {
	Email    string
	APIToken string
}

// authHeader はBasic認証ヘッダー値を生成する（email/token:api_token形式）。
func (c Credentials) authHeader() string {
	raw := fmt.Sprintf("%s/token:%s", c.Email, c.APIToken)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Client はZendesk REST APIのクライアント。
// すべての呼び出しはレートリミッターで制御され、Monitorに記録される。
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	mon         *monitor.Monitor
	logger      *slog.Logger
	baseURL     *url.URL
	creds       Credentials
	maxAttempts int
	retryDelay  time.Duration // テスト用に短縮可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはZendeskインスタンスのルート（例: "https://yourcompany.zendesk.com"）。
func NewClient(
	baseURL string,
	creds Credentials,
	httpClient *http.Client,
	limiter *rate.Limiter,
	mon *monitor.Monitor,
	logger *slog.Logger,
) (*Client, error) {
	if err := security.ValidateBaseURL(baseURL); err != nil {
		return nil, fmt.Errorf("ベースURLの検証に失敗しました: %w", err)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}

	return &Client{
		httpClient:  httpClient,
		limiter:     limiter,
		mon:         mon,
		logger:      logger,
		baseURL:     parsed,
		creds:       creds,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}, nil
}

// SetMaxAttempts は一時的エラーに対する最大試行回数を設定する。
// 1未満の値は無視する。
func (c *Client) SetMaxAttempts(n int) {
	if n >= 1 {
		c.maxAttempts = n
	}
}

// apiURL はベースURL配下のエンドポイントURLを構築する。
func (c *Client) apiURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// callResult はHTTPステータスコードに基づく呼び出し結果の分類。
type callResult int

const (
	// resultOK は成功（2xx）。
	resultOK callResult = iota
	// resultAuth は認証失敗（401/403）。リトライしない。
	resultAuth
	// resultRetry は一時的エラー（429/5xx）。リトライ対象。
	resultRetry
	// resultRemote はその他の失敗ステータス。リトライしない。
	resultRemote
)

// classifyStatus はHTTPステータスコードを呼び出し結果に分類する。
func classifyStatus(statusCode int) callResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return resultOK
	case statusCode == 401 || statusCode == 403:
		return resultAuth
	case statusCode == 429 || statusCode >= 500:
		return resultRetry
	default:
		return resultRemote
	}
}

// getJSON は指定URLにGETリクエストを発行し、レスポンスJSONをoutへデコードする。
// 一時的エラー（429/5xx/ネットワークエラー）は指数バックオフ付きで
// maxAttempts回までリトライする。試行1回ごとにCallRecordが記録される。
func (c *Client) getJSON(ctx context.Context, category, rawURL string, out any) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err := c.mon.Record(category, func() error {
			return c.getOnce(ctx, rawURL, out)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		var authErr *model.AuthError
		if errors.As(err, &authErr) {
			return err
		}
		var remoteErr *model.RemoteError
		if errors.As(err, &remoteErr) && !remoteErr.Transient {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		c.logger.Warn("API呼び出しに失敗したためリトライします",
			slog.String("category", category),
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.maxAttempts),
			slog.String("error", err.Error()),
		)
	}

	return lastErr
}

// getOnce は1回のGETリクエストを実行する。
// レートリミッターの待機、継続URLのホスト検証、認証ヘッダーの付与を行う。
func (c *Client) getOnce(ctx context.Context, rawURL string, out any) error {
	if err := security.ValidateSameHost(rawURL, c.baseURL); err != nil {
		return model.NewRemoteError(0, rawURL, err.Error(), false)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("レートリミッターの待機に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", c.creds.authHeader())
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewRemoteError(0, rawURL, err.Error(), true)
	}
	defer resp.Body.Close()

	switch classifyStatus(resp.StatusCode) {
	case resultOK:
		// 以下で処理を続行
	case resultAuth:
		return model.NewAuthError(resp.StatusCode, "資格情報を確認してください")
	case resultRetry:
		return model.NewRemoteError(resp.StatusCode, rawURL, "一時的なエラーが発生しました", true)
	default:
		return model.NewRemoteError(resp.StatusCode, rawURL, "予期しないステータスコードです", false)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.NewRemoteError(0, rawURL, fmt.Sprintf("レスポンスボディの読み取りに失敗しました: %s", err), true)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return model.NewRemoteError(0, rawURL, fmt.Sprintf("レスポンスJSONのパースに失敗しました: %s", err), false)
	}

	return nil
}

// currentUserResponse は認証確認エンドポイントのレスポンス。
type currentUserResponse struct {
	User model.UserIdentity `json:"user"`
}

// VerifyAuth はAPI資格情報の有効性を確認する。
// 匿名ユーザーが返る場合（資格情報未送信と同等）もAuthErrorとする。
func (c *Client) VerifyAuth(ctx context.Context) error {
	u := c.apiURL("/api/v2/users/me.json", nil)

	var resp currentUserResponse
	if err := c.getJSON(ctx, monitor.CategoryAuthentication, u, &resp); err != nil {
		return err
	}

	if resp.User.ID == 0 {
		return model.NewAuthError(0, "匿名ユーザーとして認証されました。資格情報を確認してください")
	}

	c.logger.Info("認証に成功しました",
		slog.Int64("user_id", resp.User.ID),
		slog.String("email", resp.User.Email),
	)

	return nil
}
