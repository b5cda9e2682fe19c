// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordConversationProcessed(status string)
	RecordConversationError()
	RecordAgentDispatch(kind string)
	RecordAgentDispatchLatency(duration time.Duration)
	RecordDealPending()
	RecordNeedsHelp()
	RecordOffersSent(count int)
	RecordStaleClosed(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	conversationsProcessed *prometheus.CounterVec
	conversationErrors     prometheus.Counter
	agentDispatches        *prometheus.CounterVec
	agentDispatchLatency   prometheus.Histogram
	dealsPending           prometheus.Counter
	needsHelp              prometheus.Counter
	offersSent             prometheus.Counter
	staleClosed            prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		conversationsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealman_conversations_processed_total",
			Help: "処理済み会話の合計数（処理後ステータス別）",
		}, []string{"status"}),
		conversationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealman_conversation_errors_total",
			Help: "会話処理エラーの合計数",
		}),
		agentDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dealman_agent_dispatches_total",
			Help: "エージェントへのタスク送出の合計数（タスク種別別）",
		}, []string{"kind"}),
		agentDispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "dealman_agent_dispatch_latency_seconds",
			Help: "エージェントタスクのレイテンシ（秒）",
			// ブラウザ操作は分単位でかかるため長めのバケットを使う
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		dealsPending: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealman_deals_pending_total",
			Help: "取引成立（deal_pending遷移）の合計数",
		}),
		needsHelp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealman_needs_help_total",
			Help: "人間の介入要求の合計数",
		}),
		offersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealman_offers_sent_total",
			Help: "送信した初回オファーの合計数",
		}),
		staleClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dealman_stale_closed_total",
			Help: "無応答で打ち切った会話の合計数",
		}),
	}

	reg.MustRegister(
		c.conversationsProcessed,
		c.conversationErrors,
		c.agentDispatches,
		c.agentDispatchLatency,
		c.dealsPending,
		c.needsHelp,
		c.offersSent,
		c.staleClosed,
	)

	return c
}

// RecordConversationProcessed は会話処理の完了を記録する。
func (c *Collector) RecordConversationProcessed(status string) {
	c.conversationsProcessed.WithLabelValues(status).Inc()
}

// RecordConversationError は会話処理エラーを記録する。
func (c *Collector) RecordConversationError() {
	c.conversationErrors.Inc()
}

// RecordAgentDispatch はエージェントへのタスク送出を記録する。
func (c *Collector) RecordAgentDispatch(kind string) {
	c.agentDispatches.WithLabelValues(kind).Inc()
}

// RecordAgentDispatchLatency はエージェントタスクのレイテンシを記録する。
func (c *Collector) RecordAgentDispatchLatency(duration time.Duration) {
	c.agentDispatchLatency.Observe(duration.Seconds())
}

// RecordDealPending は取引成立を記録する。
func (c *Collector) RecordDealPending() {
	c.dealsPending.Inc()
}

// RecordNeedsHelp は介入要求を記録する。
func (c *Collector) RecordNeedsHelp() {
	c.needsHelp.Inc()
}

// RecordOffersSent は送信した初回オファー数を記録する。
func (c *Collector) RecordOffersSent(count int) {
	c.offersSent.Add(float64(count))
}

// RecordStaleClosed は無応答打ち切り数を記録する。
func (c *Collector) RecordStaleClosed(count int) {
	c.staleClosed.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
