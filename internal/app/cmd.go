package app

import (
	"fmt"
	"strings"

	"github.com/VScristianlazar/zendesk-api-integration/internal/window"
)

// Options はコマンドライン引数から解析した実行オプション。
type Options struct {
	// Mode は日付ウィンドウの計算モード（デフォルト: last30）。
	Mode window.Mode
	// NoCache がtrueの場合、ユーザーキャッシュを無視してすべて再取得する。
	NoCache bool
	// SkipReport がtrueの場合、API使用状況レポートの出力を省略する。
	SkipReport bool
	// Sequential がtrueの場合、コメントを1チケットずつ順番に取得する。
	Sequential bool
	// OutputPath は出力CSVのパス。空の場合はウィンドウラベルから自動生成する。
	OutputPath string
}

// ParseArgs はコマンドライン引数を解析する。
// argsにはos.Args[1:]を渡す。サポート外のフラグはエラーを返す。
func ParseArgs(args []string) (Options, error) {
	opts := Options{Mode: window.ModeLast30Days}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// --flag=value 形式を分解する
		var value string
		var hasValue bool
		if idx := strings.Index(arg, "="); idx >= 0 {
			arg, value, hasValue = arg[:idx], arg[idx+1:], true
		}

		next := func(name string) (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s には値が必要です", name)
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "--mode":
			v, err := next("--mode")
			if err != nil {
				return Options{}, err
			}
			mode, err := window.ParseMode(v)
			if err != nil {
				return Options{}, err
			}
			opts.Mode = mode

		case "--out":
			v, err := next("--out")
			if err != nil {
				return Options{}, err
			}
			opts.OutputPath = v

		case "--no-cache":
			opts.NoCache = true

		case "--skip-report":
			opts.SkipReport = true

		case "--sequential":
			opts.Sequential = true

		default:
			return Options{}, fmt.Errorf("サポートされていない引数です: %s", arg)
		}
	}

	return opts, nil
}
