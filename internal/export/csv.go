package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
)

// utf8BOM はExcelがUTF-8を正しく認識するためのバイトオーダーマーク。
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvHeader はCSV出力のヘッダ行。列の順序は固定。
var csvHeader = []string{
	"ticket_id",
	"subject",
	"status",
	"priority",
	"type",
	"tags",
	"created_at",
	"updated_at",
	"requester_name",
	"requester_email",
	"assignee_name",
	"assignee_email",
	"comment_author_name",
	"comment_author_email",
	"comment_body",
	"comment_visibility",
	"comment_created_at",
}

// WriteCSV は行をUTF-8（BOM付き）のCSVとして書き出す。
func WriteCSV(w io.Writer, rows []model.ExportRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("BOMの書き込みに失敗しました: %w", err)
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("ヘッダ行の書き込みに失敗しました: %w", err)
	}

	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.TicketID, 10),
			row.Subject,
			row.Status,
			row.Priority,
			row.Type,
			row.Tags,
			formatTime(row.CreatedAt),
			formatTime(row.UpdatedAt),
			row.RequesterName,
			row.RequesterEmail,
			row.AssigneeName,
			row.AssigneeEmail,
			row.AuthorName,
			row.AuthorEmail,
			row.CommentBody,
			row.Visibility,
			formatTime(row.CommentCreatedAt),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("行の書き込みに失敗しました: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("CSVのフラッシュに失敗しました: %w", err)
	}

	return nil
}

// WriteCSVFile は行を指定パスのCSVファイルに書き出す。
func WriteCSVFile(path string, rows []model.ExportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("出力ファイルの作成に失敗しました: %w", err)
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("出力ファイルのクローズに失敗しました: %w", err)
	}

	return nil
}

// formatTime は時刻をRFC3339形式の文字列にする。ゼロ値は空文字列。
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
