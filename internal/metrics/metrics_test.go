package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findFamily は名前に一致するメトリクスファミリーを返す。
func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// counterByLabel はラベル値ごとのカウンタ値をmapにまとめる。
func counterByLabel(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return out
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordGateDecision_IncrementsCounterWithOutcome はゲート判定がoutcomeラベル付きで集計されることを検証する。
func TestRecordGateDecision_IncrementsCounterWithOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGateDecision("allow")
	c.RecordGateDecision("allow")
	c.RecordGateDecision("redirect_mfa")

	got := counterByLabel(findFamily(t, reg, "salesdash_gate_decisions_total"))
	if got["allow"] != 2 {
		t.Errorf("gate_decisions_total{outcome=allow} = %v, want 2", got["allow"])
	}
	if got["redirect_mfa"] != 1 {
		t.Errorf("gate_decisions_total{outcome=redirect_mfa} = %v, want 1", got["redirect_mfa"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 label combinations, got %d", len(got))
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	got := counterByLabel(findFamily(t, reg, "salesdash_http_status_total"))
	if len(got) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(got))
	}
	if got["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", got["200"])
	}
	if got["404"] != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", got["404"])
	}
}

// TestRecordRequestLatency_ObservesHistogram はリクエスト時間のヒストグラムに値が記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(100 * time.Millisecond)
	c.RecordRequestLatency(2 * time.Second)

	h := findFamily(t, reg, "salesdash_http_request_duration_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordLeadMutation_IncrementsCounterWithOperation はリード変更が操作別に集計されることを検証する。
func TestRecordLeadMutation_IncrementsCounterWithOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLeadMutation("create")
	c.RecordLeadMutation("update")
	c.RecordLeadMutation("update")
	c.RecordLeadMutation("delete")

	got := counterByLabel(findFamily(t, reg, "salesdash_lead_mutations_total"))
	want := map[string]float64{"create": 1, "update": 2, "delete": 1}
	for op, v := range want {
		if got[op] != v {
			t.Errorf("lead_mutations_total{operation=%s} = %v, want %v", op, got[op], v)
		}
	}
}

// TestRecordStatsCache_SplitsHitAndMiss はキャッシュのヒットとミスが別ラベルで集計されることを検証する。
func TestRecordStatsCache_SplitsHitAndMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStatsCache(false)
	c.RecordStatsCache(true)
	c.RecordStatsCache(true)

	got := counterByLabel(findFamily(t, reg, "salesdash_stats_cache_total"))
	if got["hit"] != 2 {
		t.Errorf("stats_cache_total{result=hit} = %v, want 2", got["hit"])
	}
	if got["miss"] != 1 {
		t.Errorf("stats_cache_total{result=miss} = %v, want 1", got["miss"])
	}
}

// TestRecordEventPublishFailure_IncrementsCounter はイベント発行失敗が種別ごとに集計されることを検証する。
func TestRecordEventPublishFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEventPublishFailure("lead.created")

	got := counterByLabel(findFamily(t, reg, "salesdash_event_publish_fail_total"))
	if got["lead.created"] != 1 {
		t.Errorf("event_publish_fail_total{type=lead.created} = %v, want 1", got["lead.created"])
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordGateDecision("redirect_login")
	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(500 * time.Millisecond)
	c.RecordLeadMutation("create")
	c.RecordStatsCache(true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"salesdash_gate_decisions_total",
		"salesdash_http_status_total",
		"salesdash_http_request_duration_seconds",
		"salesdash_lead_mutations_total",
		"salesdash_stats_cache_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordLeadMutation("create")
	c2.RecordLeadMutation("create")
	c2.RecordLeadMutation("create")

	val1 := counterByLabel(findFamily(t, reg1, "salesdash_lead_mutations_total"))["create"]
	val2 := counterByLabel(findFamily(t, reg2, "salesdash_lead_mutations_total"))["create"]

	if val1 != 1 {
		t.Errorf("reg1 lead_mutations = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 lead_mutations = %v, want 2", val2)
	}
}
