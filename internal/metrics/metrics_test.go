package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// CollectorはMetricsCollectorインターフェースを満たすことを検証
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
}

func TestCollector_RecordConversationProcessed(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConversationProcessed("negotiating")
	c.RecordConversationProcessed("negotiating")
	c.RecordConversationProcessed("deal_pending")

	got := testutil.ToFloat64(c.conversationsProcessed.WithLabelValues("negotiating"))
	if got != 2 {
		t.Errorf("negotiating = %v, want 2", got)
	}
	got = testutil.ToFloat64(c.conversationsProcessed.WithLabelValues("deal_pending"))
	if got != 1 {
		t.Errorf("deal_pending = %v, want 1", got)
	}
}

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConversationError()
	c.RecordDealPending()
	c.RecordNeedsHelp()
	c.RecordOffersSent(3)
	c.RecordStaleClosed(2)
	c.RecordAgentDispatch("read_conversation")
	c.RecordAgentDispatchLatency(30 * time.Second)

	if got := testutil.ToFloat64(c.conversationErrors); got != 1 {
		t.Errorf("conversationErrors = %v", got)
	}
	if got := testutil.ToFloat64(c.dealsPending); got != 1 {
		t.Errorf("dealsPending = %v", got)
	}
	if got := testutil.ToFloat64(c.offersSent); got != 3 {
		t.Errorf("offersSent = %v", got)
	}
	if got := testutil.ToFloat64(c.staleClosed); got != 2 {
		t.Errorf("staleClosed = %v", got)
	}
}

// /metricsパスでメトリクスが返ることを検証
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordDealPending()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "dealman_deals_pending_total") {
		t.Error("response should contain dealman_deals_pending_total metric")
	}
}
