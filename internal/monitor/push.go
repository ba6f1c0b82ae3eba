package monitor

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push は記録済みメトリクスをPrometheus Pushgatewayへ送信する。
// ワンショットのバッチ実行のためスクレイプではなくプッシュ方式を使用する。
// run_idをグルーピングラベルに設定し、実行ごとの系列を区別する。
func (m *Monitor) Push(gatewayURL, job, runID string) error {
	if err := push.New(gatewayURL, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		Push(); err != nil {
		return fmt.Errorf("Pushgatewayへのメトリクス送信に失敗しました: %w", err)
	}
	return nil
}
