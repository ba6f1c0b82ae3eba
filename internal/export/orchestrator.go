// Package export はチケット・コメント・ユーザー情報の取得から
// CSV出力までのエクスポートパイプラインを提供する。
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
	"github.com/VScristianlazar/zendesk-api-integration/internal/window"
)

// Stage はエクスポートパイプラインの進行段階を表す。
type Stage int

const (
	StageIdle Stage = iota
	StageFetchingTickets
	StageFetchingComments
	StageResolvingUsers
	StageJoining
	StageDone
	StageFailed
)

// String はStringerインターフェースを実装する。
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetchingTickets:
		return "fetching_tickets"
	case StageFetchingComments:
		return "fetching_comments"
	case StageResolvingUsers:
		return "resolving_users"
	case StageJoining:
		return "joining"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// TicketLister は期間内のチケット一覧取得のインターフェース。
type TicketLister interface {
	ListTickets(ctx context.Context, start, end time.Time) ([]model.Ticket, error)
}

// CommentLister はチケットのコメント一覧取得のインターフェース。
type CommentLister interface {
	ListComments(ctx context.Context, ticketID int64) ([]model.Comment, error)
}

// UserResolver はユーザーIDの一括解決のインターフェース。
type UserResolver interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]model.UserIdentity, error)
}

// Config はオーケストレータの設定パラメータ。
type Config struct {
	// MaxConcurrent はコメント取得の最大並列数（デフォルト: 5）。
	MaxConcurrent int
	// Sequential がtrueの場合、コメントを1チケットずつ順番に取得する。
	Sequential bool
}

// Orchestrator はエクスポートパイプラインを段階的に実行する。
// チケット取得 → コメント取得 → ユーザー解決 → 結合 の順で進み、
// 認証エラー以外のコメント取得失敗は該当チケットのエラー行として出力を継続する。
type Orchestrator struct {
	tickets  TicketLister
	comments CommentLister
	users    UserResolver
	logger   *slog.Logger
	config   Config

	mu    sync.Mutex
	stage Stage
}

// New はOrchestratorの新しいインスタンスを生成する。
func New(tickets TicketLister, comments CommentLister, users UserResolver, logger *slog.Logger, config Config) *Orchestrator {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 5
	}
	return &Orchestrator{
		tickets:  tickets,
		comments: comments,
		users:    users,
		logger:   logger,
		config:   config,
		stage:    StageIdle,
	}
}

// Stage は現在の進行段階を返す。
func (o *Orchestrator) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

func (o *Orchestrator) setStage(s Stage) {
	o.mu.Lock()
	o.stage = s
	o.mu.Unlock()
	o.logger.Info("パイプラインの段階が変わりました", slog.String("stage", s.String()))
}

// Run は指定ウィンドウのエクスポートを実行し、CSV出力用の行を返す。
// 認証エラーとコンテキストキャンセルは致命的エラーとして中断する。
// コメント取得の失敗は該当チケットのエラー行に、ユーザー解決の失敗は
// センチネルへのフォールバックになり、いずれも実行を継続する。
func (o *Orchestrator) Run(ctx context.Context, win window.Window) ([]model.ExportRow, error) {
	o.setStage(StageFetchingTickets)

	tickets, err := o.tickets.ListTickets(ctx, win.Start, win.End)
	if err != nil {
		o.setStage(StageFailed)
		return nil, fmt.Errorf("チケット一覧の取得に失敗しました: %w", err)
	}

	o.logger.Info("チケットを取得しました",
		slog.Int("ticket_count", len(tickets)),
		slog.String("window", win.Label),
	)

	o.setStage(StageFetchingComments)

	var outcomes []CommentOutcome
	if o.config.Sequential {
		outcomes, err = o.fetchCommentsSequential(ctx, tickets)
	} else {
		outcomes, err = o.fetchCommentsConcurrent(ctx, tickets)
	}
	if err != nil {
		o.setStage(StageFailed)
		return nil, err
	}

	o.setStage(StageResolvingUsers)

	users, err := o.users.Resolve(ctx, collectUserIDs(tickets, outcomes))
	if err != nil {
		var authErr *model.AuthError
		var partialErr *model.PartialResolutionError
		switch {
		case errors.As(err, &authErr):
			o.setStage(StageFailed)
			return nil, fmt.Errorf("ユーザー解決に失敗しました: %w", err)
		case errors.As(err, &partialErr):
			o.logger.Warn("一部のユーザーを解決できませんでした。センチネルで継続します",
				slog.Int("missing_count", len(partialErr.MissingIDs)),
			)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			o.setStage(StageFailed)
			return nil, err
		default:
			o.logger.Warn("ユーザー解決に失敗しました。センチネルで継続します",
				slog.String("error", err.Error()),
			)
		}
	}

	o.setStage(StageJoining)

	rows := BuildRows(tickets, outcomes, users)

	o.setStage(StageDone)
	o.logger.Info("エクスポートパイプラインが完了しました",
		slog.Int("ticket_count", len(tickets)),
		slog.Int("row_count", len(rows)),
	)

	return rows, nil
}

// fetchCommentsSequential は1チケットずつ順番にコメントを取得する。
func (o *Orchestrator) fetchCommentsSequential(ctx context.Context, tickets []model.Ticket) ([]CommentOutcome, error) {
	outcomes := make([]CommentOutcome, len(tickets))
	for i, t := range tickets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		comments, err := o.comments.ListComments(ctx, t.ID)
		outcomes[i] = CommentOutcome{Comments: comments, Err: err}
	}
	return outcomes, o.checkFatalOutcomes(outcomes)
}

// fetchCommentsConcurrent はsemaphoreパターンで最大並列数を制御しながら
// コメントを取得する。結果はチケットの入力順にインデックス付けされるため、
// 並列実行でも出力順序は決定的になる。
func (o *Orchestrator) fetchCommentsConcurrent(ctx context.Context, tickets []model.Ticket) ([]CommentOutcome, error) {
	outcomes := make([]CommentOutcome, len(tickets))

	sem := make(chan struct{}, o.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, t := range tickets {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）
		go func(i int, ticketID int64) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			comments, err := o.comments.ListComments(ctx, ticketID)
			outcomes[i] = CommentOutcome{Comments: comments, Err: err}
		}(i, t.ID)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, o.checkFatalOutcomes(outcomes)
}

// checkFatalOutcomes はコメント取得結果に認証エラーが含まれる場合に
// それを返す。認証エラーはチケット単位で継続できないため全体を中断する。
func (o *Orchestrator) checkFatalOutcomes(outcomes []CommentOutcome) error {
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			continue
		}
		var authErr *model.AuthError
		if errors.As(outcome.Err, &authErr) {
			return fmt.Errorf("コメント取得中に認証エラーが発生しました: %w", outcome.Err)
		}
		o.logger.Warn("コメントの取得に失敗しました。エラー行として継続します",
			slog.String("error", outcome.Err.Error()),
		)
	}
	return nil
}

// collectUserIDs はチケットとコメントから解決対象のユーザーIDを重複なしで収集する。
func collectUserIDs(tickets []model.Ticket, outcomes []CommentOutcome) []int64 {
	seen := make(map[int64]bool)
	var ids []int64

	add := func(id int64) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, t := range tickets {
		add(t.RequesterID)
		add(t.AssigneeID)
	}
	for _, outcome := range outcomes {
		for _, c := range outcome.Comments {
			add(c.AuthorID)
		}
	}

	return ids
}
