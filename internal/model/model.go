// Package model はドメインモデルを定義する。
package model

import "time"

// Ticket はZendeskのサポートチケットを表す。
// リモートAPIが生成する読み取り専用のデータで、1回のエクスポート実行の間だけ保持する。
type Ticket struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Type        string    `json:"type"`
	RequesterID int64     `json:"requester_id"`
	AssigneeID  int64     `json:"assignee_id"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment はチケットに付随するコメントを表す。
// チケット内の順序は作成順であり、取得時の順序を保持しなければならない。
// TicketIDはAPIレスポンスには含まれないため、取得時にクライアントが設定する。
type Comment struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"html_body"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
	TicketID  int64     `json:"-"`
}

// UserIdentity はユーザーの表示名とメールアドレスを表す。
// 遅延取得され、キャッシュされる。
type UserIdentity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnknownUser は解決できなかったコメント著者のセンチネルを返す。
func UnknownUser() UserIdentity {
	return UserIdentity{Name: "Unknown User", Email: "unknown@example.com"}
}

// UnknownRequester は解決できなかったリクエスタのセンチネルを返す。
func UnknownRequester() UserIdentity {
	return UserIdentity{Name: "Unknown Requester", Email: "unknown@example.com"}
}

// Unassigned は担当者未割り当てのセンチネルを返す。
func Unassigned() UserIdentity {
	return UserIdentity{Name: "Unassigned", Email: "unassigned@example.com"}
}

// ExportRow はチケット×コメント×ユーザー情報を非正規化したCSV出力の1行を表す。
// コメント1件につき1行。コメントが0件のチケットもコメント欄を空にした1行を生成する。
type ExportRow struct {
	TicketID         int64
	Subject          string
	Status           string
	Priority         string
	Type             string
	Tags             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	RequesterName    string
	RequesterEmail   string
	AssigneeName     string
	AssigneeEmail    string
	AuthorName       string
	AuthorEmail      string
	CommentBody      string
	Visibility       string
	CommentCreatedAt time.Time
}
