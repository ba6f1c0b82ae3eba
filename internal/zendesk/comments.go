package zendesk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
	"github.com/VScristianlazar/zendesk-api-integration/internal/monitor"
)

// commentsPage はコメント一覧エンドポイントの1ページ分のレスポンス。
type commentsPage struct {
	Comments []model.Comment `json:"comments"`
	NextPage string          `json:"next_page"`
}

// ListComments は指定チケットの全コメントを作成順で取得する。
// APIは作成順で返すため、取得順をそのまま保持する。
func (c *Client) ListComments(ctx context.Context, ticketID int64) ([]model.Comment, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(perPage))

	pageURL := c.apiURL(fmt.Sprintf("/api/v2/tickets/%d/comments.json", ticketID), query)

	var comments []model.Comment

	for pageURL != "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var page commentsPage
		if err := c.getJSON(ctx, monitor.CategoryTicketComments, pageURL, &page); err != nil {
			return nil, err
		}

		for _, comment := range page.Comments {
			comment.TicketID = ticketID
			comments = append(comments, comment)
		}

		pageURL = page.NextPage
	}

	return comments, nil
}
