package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
)

// CommentOutcome は1チケット分のコメント取得結果。
// Errが非nilの場合、そのチケットはエラーマーカー行として出力される。
type CommentOutcome struct {
	Comments []model.Comment
	Err      error
}

// stripPolicy はHTML本文からタグをすべて除去するポリシー。
var stripPolicy = bluemonday.StrictPolicy()

// BuildRows はチケット・コメント・ユーザー情報を結合してCSV出力用の行を生成する。
// outcomesはticketsと同じ長さ・同じ順序であること。
// 行の順序はチケットの入力順、チケット内はコメントの作成順を保持する。
// 解決できなかったユーザーはセンチネル（Unknown User等）にフォールバックする。
func BuildRows(tickets []model.Ticket, outcomes []CommentOutcome, users map[int64]model.UserIdentity) []model.ExportRow {
	rows := make([]model.ExportRow, 0, len(tickets))

	for i, t := range tickets {
		base := model.ExportRow{
			TicketID:  t.ID,
			Subject:   t.Subject,
			Status:    t.Status,
			Priority:  t.Priority,
			Type:      t.Type,
			Tags:      strings.Join(t.Tags, ","),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		}

		requester := resolveUser(users, t.RequesterID, model.UnknownRequester())
		base.RequesterName = requester.Name
		base.RequesterEmail = requester.Email

		var assignee model.UserIdentity
		if t.AssigneeID == 0 {
			assignee = model.Unassigned()
		} else {
			assignee = resolveUser(users, t.AssigneeID, model.UnknownUser())
		}
		base.AssigneeName = assignee.Name
		base.AssigneeEmail = assignee.Email

		outcome := CommentOutcome{}
		if i < len(outcomes) {
			outcome = outcomes[i]
		}

		if outcome.Err != nil {
			row := base
			row.CommentBody = fmt.Sprintf("[ERROR] failed to fetch comments: %v", outcome.Err)
			rows = append(rows, row)
			continue
		}

		if len(outcome.Comments) == 0 {
			// コメント0件のチケットもコメント欄を空にした1行を出力する
			rows = append(rows, base)
			continue
		}

		for _, c := range outcome.Comments {
			row := base

			author := resolveUser(users, c.AuthorID, model.UnknownUser())
			row.AuthorName = author.Name
			row.AuthorEmail = author.Email

			row.CommentBody = commentText(c)
			row.CommentCreatedAt = c.CreatedAt
			if c.Public {
				row.Visibility = "public"
			} else {
				row.Visibility = "internal"
			}

			rows = append(rows, row)
		}
	}

	return rows
}

// resolveUser はユーザーマップからIDを引き、存在しない場合はフォールバックを返す。
func resolveUser(users map[int64]model.UserIdentity, id int64, fallback model.UserIdentity) model.UserIdentity {
	if u, ok := users[id]; ok {
		return u
	}
	return fallback
}

// commentText はコメントの本文テキストを返す。
// プレーンテキスト本文が空の場合はHTML本文からタグを除去して使う。
func commentText(c model.Comment) string {
	if c.Body != "" {
		return c.Body
	}
	if c.HTMLBody == "" {
		return ""
	}
	stripped := stripPolicy.Sanitize(c.HTMLBody)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
