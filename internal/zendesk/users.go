package zendesk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
	"github.com/VScristianlazar/zendesk-api-integration/internal/monitor"
)

// usersPage はユーザー一括取得エンドポイントのレスポンス。
type usersPage struct {
	Users []model.UserIdentity `json:"users"`
}

// ShowManyUsers は複数ユーザーの情報を1回の呼び出しで一括取得する。
// IDリストは最大MaxUsersPerRequest件まで。チャンク分割は呼び出し元（キャッシュ層）が行う。
// 削除済みユーザー等、レスポンスに含まれないIDは結果マップに存在しない。
func (c *Client) ShowManyUsers(ctx context.Context, ids []int64) (map[int64]model.UserIdentity, error) {
	if len(ids) == 0 {
		return make(map[int64]model.UserIdentity), nil
	}

	if len(ids) > MaxUsersPerRequest {
		return nil, fmt.Errorf("IDの数が上限を超えています: %d > %d", len(ids), MaxUsersPerRequest)
	}

	idStrs := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrs = append(idStrs, strconv.FormatInt(id, 10))
	}

	query := url.Values{}
	query.Set("ids", strings.Join(idStrs, ","))

	var page usersPage
	if err := c.getJSON(ctx, monitor.CategoryUsers, c.apiURL("/api/v2/users/show_many.json", query), &page); err != nil {
		return nil, err
	}

	users := make(map[int64]model.UserIdentity, len(page.Users))
	for _, u := range page.Users {
		users[u.ID] = u
	}

	return users, nil
}
