// Package app はアプリケーションの初期化と実行を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/VScristianlazar/zendesk-api-integration/internal/cache"
	"github.com/VScristianlazar/zendesk-api-integration/internal/config"
	"github.com/VScristianlazar/zendesk-api-integration/internal/database"
	"github.com/VScristianlazar/zendesk-api-integration/internal/export"
	"github.com/VScristianlazar/zendesk-api-integration/internal/logger"
	"github.com/VScristianlazar/zendesk-api-integration/internal/monitor"
	"github.com/VScristianlazar/zendesk-api-integration/internal/security"
	"github.com/VScristianlazar/zendesk-api-integration/internal/window"
	"github.com/VScristianlazar/zendesk-api-integration/internal/zendesk"
)

// metricsJobName はPushgatewayに送信するジョブ名。
const metricsJobName = "zendesk_export"

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// 引数を解析し、エクスポートパイプラインを実行してCSVファイルを出力する。
// argsにはos.Args[1:]を渡す。
// SIGINTまたはSIGTERMシグナルを受信すると実行中のパイプラインを中断する。
func Run(w io.Writer, args []string) error {
	opts, err := ParseArgs(args)
	if err != nil {
		return fmt.Errorf("引数の解析に失敗しました: %w", err)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	runID := uuid.NewString()

	slog.Info("エクスポートを開始します",
		slog.String("run_id", runID),
		slog.String("mode", string(opts.Mode)),
		slog.Bool("no_cache", opts.NoCache),
		slog.Bool("sequential", opts.Sequential),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	win, err := window.Compute(opts.Mode, time.Now())
	if err != nil {
		return err
	}

	slog.Info("日付ウィンドウを計算しました",
		slog.Time("start", win.Start),
		slog.Time("end", win.End),
		slog.String("label", win.Label),
	)

	mon := monitor.New()

	// アウトバウンドHTTPクライアント（SSRF対策済み）とレートリミッタ
	httpClient := security.NewSafeClient(cfg.HTTPTimeout)
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.MaxConcurrent)

	client, err := zendesk.NewClient(
		cfg.ZendeskBaseURL,
		zendesk.Credentials{Email: cfg.ZendeskEmail, APIToken: cfg.ZendeskAPIToken},
		httpClient,
		limiter,
		mon,
		slog.Default(),
	)
	if err != nil {
		return fmt.Errorf("APIクライアントの初期化に失敗しました: %w", err)
	}
	client.SetMaxAttempts(cfg.RetryMaxAttempts)

	// 認証情報を実行前に検証する。失敗時はここで中断する。
	if err := client.VerifyAuth(ctx); err != nil {
		return fmt.Errorf("認証の検証に失敗しました: %w", err)
	}

	store, cleanup, err := newCacheStore(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	userCache := cache.New(client, store, slog.Default(), cache.Config{
		TTL:           cfg.UserCacheTTL,
		Bypass:        opts.NoCache,
		ChunkSize:     zendesk.MaxUsersPerRequest,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	if err := userCache.LoadPersisted(ctx); err != nil {
		slog.Warn("ユーザーキャッシュの読み込みに失敗しました。空のキャッシュで継続します",
			slog.String("error", err.Error()),
		)
	}

	orch := export.New(client, client, userCache, slog.Default(), export.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		Sequential:    opts.Sequential,
	})

	rows, err := orch.Run(ctx, win)
	if err != nil {
		return fmt.Errorf("エクスポートに失敗しました: %w", err)
	}

	if err := userCache.SavePersisted(ctx); err != nil {
		slog.Warn("ユーザーキャッシュの保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = fmt.Sprintf("zendesk_tickets_%s.csv", win.Label)
	}

	if err := export.WriteCSVFile(outputPath, rows); err != nil {
		return fmt.Errorf("CSVの出力に失敗しました: %w", err)
	}

	slog.Info("CSVを出力しました",
		slog.String("path", outputPath),
		slog.Int("row_count", len(rows)),
	)

	if !opts.SkipReport {
		monitor.WriteReport(os.Stdout, mon.Summary())
		fmt.Fprintf(os.Stdout, "USER CACHE: %d entries\n", userCache.Len())
	}

	if cfg.PushgatewayURL != "" {
		if err := mon.Push(cfg.PushgatewayURL, metricsJobName, runID); err != nil {
			slog.Warn("メトリクスのプッシュに失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("エクスポートが完了しました",
		slog.String("run_id", runID),
	)
	return nil
}

// newCacheStore は設定に応じたキャッシュストアを生成する。
// CACHE_DATABASE_URLが設定されている場合はPostgreSQL、
// それ以外はJSONファイルを使用する。
// 第2戻り値はDB接続のクローズ関数（ファイルストアの場合はnil）。
func newCacheStore(cfg *config.Config) (cache.Store, func(), error) {
	if cfg.CacheDatabaseURL == "" {
		return cache.NewFileStore(cfg.UserCacheFile), nil, nil
	}

	if err := database.RunMigrations(cfg.CacheDatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("キャッシュDBのマイグレーションに失敗しました: %w", err)
	}

	db, err := database.Open(cfg.CacheDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("キャッシュDBのオープンに失敗しました: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("キャッシュDBへの接続に失敗しました: %w", err)
	}

	slog.Info("キャッシュDBに接続しました")
	return cache.NewPGStore(db), func() { db.Close() }, nil
}
