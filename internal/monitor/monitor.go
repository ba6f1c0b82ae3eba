// Package monitor はリモートAPI呼び出しの計測と使用状況レポートを提供する。
// すべての外部呼び出しをRecordで包み、カテゴリ別の回数と所要時間を記録する。
package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 呼び出しカテゴリ。集計はカテゴリ単位で行う。
const (
	CategoryAuthentication = "authentication"
	CategoryTicketListing  = "ticket_listing"
	CategoryTicketComments = "ticket_comments"
	CategoryUsers          = "users"
)

// CallRecord は1回の外部呼び出しの記録を表す。
// Monitorが所有する追記専用リストの要素で、プロセス開始時のみクリアされる。
type CallRecord struct {
	Category  string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Success は呼び出しが成功したかを返す。
func (r CallRecord) Success() bool {
	return r.Err == nil
}

// Monitor は外部呼び出しの記録を収集する。
// 並行フェッチからの同時追記を失わないようミューテックスで保護する。
// 記録はPrometheusコレクタにも反映され、バッチ実行後にPushgatewayへ送信できる。
type Monitor struct {
	mu      sync.Mutex
	records []CallRecord

	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	now func() time.Time
}

// New はMonitorの新しいインスタンスを生成する。
func New() *Monitor {
	registry := prometheus.NewRegistry()

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zendesk_export_api_calls_total",
		Help: "カテゴリ・結果別のZendesk API呼び出し数",
	}, []string{"category", "outcome"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zendesk_export_api_call_duration_seconds",
		Help:    "カテゴリ別のZendesk API呼び出し所要時間（秒）",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})

	registry.MustRegister(calls, latency)

	return &Monitor{
		registry: registry,
		calls:    calls,
		latency:  latency,
		now:      time.Now,
	}
}

// Record は操作fnを計測付きで実行する。
// fnの成否にかかわらずCallRecordを追記し、fnのエラーをそのまま返す。
// エラーを握りつぶさない透過的なラッパーである。
func (m *Monitor) Record(category string, fn func() error) error {
	start := m.now()
	err := fn()
	duration := m.now().Sub(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.calls.WithLabelValues(category, outcome).Inc()
	m.latency.WithLabelValues(category).Observe(duration.Seconds())

	m.mu.Lock()
	m.records = append(m.records, CallRecord{
		Category:  category,
		StartedAt: start,
		Duration:  duration,
		Err:       err,
	})
	m.mu.Unlock()

	return err
}

// Records は記録済みCallRecordのコピーを返す。
func (m *Monitor) Records() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CallRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Gatherer はPushgateway送信やテスト用にPrometheusレジストリを返す。
func (m *Monitor) Gatherer() prometheus.Gatherer {
	return m.registry
}

// CategorySummary はカテゴリ単位の集計結果を表す。
type CategorySummary struct {
	Category string
	Count    int
	Failures int
	Total    time.Duration
	Average  time.Duration
	Min      time.Duration
	Max      time.Duration
}

// Summary は使用状況レポートの集計結果を表す。
type Summary struct {
	Categories    []CategorySummary
	TotalCalls    int
	TotalDuration time.Duration
}

// Summary は全CallRecordをカテゴリ別に集計する。
// カテゴリはレポート出力を安定させるため名前順にソートする。
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCategory := make(map[string]*CategorySummary)
	var s Summary

	for _, r := range m.records {
		cs, ok := byCategory[r.Category]
		if !ok {
			cs = &CategorySummary{Category: r.Category, Min: r.Duration, Max: r.Duration}
			byCategory[r.Category] = cs
		}

		cs.Count++
		cs.Total += r.Duration
		if !r.Success() {
			cs.Failures++
		}
		if r.Duration < cs.Min {
			cs.Min = r.Duration
		}
		if r.Duration > cs.Max {
			cs.Max = r.Duration
		}

		s.TotalCalls++
		s.TotalDuration += r.Duration
	}

	for _, cs := range byCategory {
		if cs.Count > 0 {
			cs.Average = cs.Total / time.Duration(cs.Count)
		}
		s.Categories = append(s.Categories, *cs)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		return s.Categories[i].Category < s.Categories[j].Category
	})

	return s
}
