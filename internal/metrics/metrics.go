// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲート、ミドルウェア、サービス層から利用する。
type MetricsCollector interface {
	RecordGateDecision(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLeadMutation(operation string)
	RecordStatsCache(hit bool)
	RecordEventPublishFailure(eventType string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	leadMutations  *prometheus.CounterVec
	statsCache     *prometheus.CounterVec
	publishFail    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salesdash_gate_decisions_total",
			Help: "リクエストゲートの判定結果別の件数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salesdash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesdash_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		leadMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salesdash_lead_mutations_total",
			Help: "リードの作成・更新・削除の件数",
		}, []string{"operation"}),
		statsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salesdash_stats_cache_total",
			Help: "パイプライン集計キャッシュのヒット・ミス数",
		}, []string{"result"}),
		publishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salesdash_event_publish_fail_total",
			Help: "リードイベント発行失敗の件数",
		}, []string{"type"}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.httpStatus,
		c.requestLatency,
		c.leadMutations,
		c.statsCache,
		c.publishFail,
	)

	return c
}

// RecordGateDecision はゲートの判定結果を記録する。
func (c *Collector) RecordGateDecision(outcome string) {
	c.gateDecisions.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLeadMutation はリードの変更操作（create/update/delete）を記録する。
func (c *Collector) RecordLeadMutation(operation string) {
	c.leadMutations.WithLabelValues(operation).Inc()
}

// RecordStatsCache はパイプライン集計キャッシュの参照結果を記録する。
func (c *Collector) RecordStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.statsCache.WithLabelValues(result).Inc()
}

// RecordEventPublishFailure はイベント発行の失敗を記録する。
func (c *Collector) RecordEventPublishFailure(eventType string) {
	c.publishFail.WithLabelValues(eventType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
