package zendesk

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
	"github.com/VScristianlazar/zendesk-api-integration/internal/monitor"
)

// ticketsPage はチケット一覧エンドポイントの1ページ分のレスポンス。
type ticketsPage struct {
	Tickets  []model.Ticket `json:"tickets"`
	NextPage string         `json:"next_page"`
}

// ListTickets は作成日時がウィンドウ [start, end) に含まれるチケットを全ページ取得する。
// next_pageが示されなくなるまでページングを続ける。
// リモートの日付フィルタは日単位の粒度しかないため、境界は必ずクライアント側で再判定する。
func (c *Client) ListTickets(ctx context.Context, start, end time.Time) ([]model.Ticket, error) {
	query := url.Values{}
	query.Set("created_after", start.UTC().Format(time.RFC3339))
	query.Set("created_before", end.UTC().Format(time.RFC3339))
	query.Set("per_page", strconv.Itoa(perPage))

	pageURL := c.apiURL("/api/v2/tickets.json", query)

	var tickets []model.Ticket
	var pages int

	for pageURL != "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var page ticketsPage
		if err := c.getJSON(ctx, monitor.CategoryTicketListing, pageURL, &page); err != nil {
			return nil, err
		}
		pages++

		for _, t := range page.Tickets {
			if !t.CreatedAt.Before(start) && t.CreatedAt.Before(end) {
				tickets = append(tickets, t)
			}
		}

		pageURL = page.NextPage
	}

	c.logger.Info("チケット一覧を取得しました",
		slog.Int("ticket_count", len(tickets)),
		slog.Int("page_count", pages),
		slog.Time("window_start", start),
		slog.Time("window_end", end),
	)

	return tickets, nil
}
