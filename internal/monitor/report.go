package monitor

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport は使用状況レポートを人間可読な形式で書き出す。
// --skip-report指定時を除き、エクスポート完了後に標準出力へ出力される。
func WriteReport(w io.Writer, s Summary) {
	line := strings.Repeat("=", 60)

	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "ZENDESK API USAGE REPORT")
	fmt.Fprintln(w, line)

	fmt.Fprintln(w, "\nAPI CALLS BY CATEGORY:")
	for _, cs := range s.Categories {
		fmt.Fprintf(w, "  - %s: %d calls", categoryTitle(cs.Category), cs.Count)
		if cs.Failures > 0 {
			fmt.Fprintf(w, " (%d failed)", cs.Failures)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  TOTAL: %d calls\n", s.TotalCalls)

	fmt.Fprintln(w, "\nTIMING INFORMATION:")
	for _, cs := range s.Categories {
		fmt.Fprintf(w, "  - %s:\n", categoryTitle(cs.Category))
		fmt.Fprintf(w, "    * Total: %.2fs\n", cs.Total.Seconds())
		fmt.Fprintf(w, "    * Average: %.4fs\n", cs.Average.Seconds())
		fmt.Fprintf(w, "    * Range: %.4fs - %.4fs\n", cs.Min.Seconds(), cs.Max.Seconds())
	}

	fmt.Fprintf(w, "\nOVERALL API TIME: %.2f seconds\n", s.TotalDuration.Seconds())
	if s.TotalCalls > 0 {
		avg := s.TotalDuration.Seconds() / float64(s.TotalCalls)
		fmt.Fprintf(w, "AVERAGE TIME PER API CALL: %.4f seconds\n", avg)
	}
	fmt.Fprintln(w, line)
}

// categoryTitle はカテゴリ名を表示用タイトルに変換する（ticket_listing → Ticket Listing）。
func categoryTitle(category string) string {
	words := strings.Split(category, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
