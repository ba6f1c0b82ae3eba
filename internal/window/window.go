// Package window はエクスポート対象の日付ウィンドウ計算を提供する。
// 「直近30日」と「前の暦月」の2モードをサポートする。
package window

import (
	"strings"
	"time"

	"github.com/VScristianlazar/zendesk-api-integration/internal/model"
)

// Mode は日付ウィンドウの計算モードを表す。
type Mode string

const (
	// ModeLast30Days は現在時刻から遡って30日間を対象とする（デフォルト）。
	ModeLast30Days Mode = "last30"
	// ModePreviousMonth は前の暦月の初日から末日までを対象とする。
	ModePreviousMonth Mode = "lastmonth"
)

// ParseMode は文字列をModeに変換する。
// サポート外の値の場合はWindowComputationErrorを返す。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLast30Days, ModePreviousMonth:
		return Mode(s), nil
	default:
		return "", model.NewWindowComputationError(s, "サポートされていないモードです（last30 または lastmonth を指定してください）")
	}
}

// Window は半開区間 [Start, End) の日付ウィンドウを表す。
// Labelは出力ファイル名やログに使用する表示用ラベル。
type Window struct {
	Start time.Time
	End   time.Time
	Label string
}

// Compute は指定モードとnow時点の日付ウィンドウを計算する。
// 前月モードはtime.Dateの月正規化により年境界（1月→前年12月）を正しく処理する。
func Compute(mode Mode, now time.Time) (Window, error) {
	now = now.UTC()

	switch mode {
	case ModeLast30Days:
		return Window{
			Start: now.AddDate(0, 0, -30),
			End:   now,
			Label: "last_30_days",
		}, nil

	case ModePreviousMonth:
		// 月を-1すると1月は前年12月に正規化される
		start := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{
			Start: start,
			End:   end,
			Label: strings.ToLower(start.Format("January_2006")),
		}, nil

	default:
		return Window{}, model.NewWindowComputationError(string(mode), "サポートされていないモードです")
	}
}

// Contains は時刻tがウィンドウ [Start, End) に含まれるかを判定する。
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
