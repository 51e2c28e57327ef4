package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMarketMetrics(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordTrade("AAPL")
	m.RecordTrade("AAPL")
	m.RecordCandleClosed("AAPL", 187.5)
	m.RecordPruned(3)

	if got := testutil.ToFloat64(m.tradesTotal.WithLabelValues("AAPL")); got != 2 {
		t.Errorf("Expected trades_total[AAPL] to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.lastClose.WithLabelValues("AAPL")); got != 187.5 {
		t.Errorf("Expected last_close[AAPL] to be 187.5, got %f", got)
	}
	if got := testutil.ToFloat64(m.candlesPruned); got != 3 {
		t.Errorf("Expected candles_pruned_total to be 3, got %f", got)
	}
}

func TestBroadcastMetrics(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordBroadcast("live")
	m.RecordBroadcast("closed")
	m.RecordBroadcast("live")
	m.SetWSClients(4)
	m.RecordWSDisconnect()
	m.RecordAlert("WARNING")

	if got := testutil.ToFloat64(m.alerts.WithLabelValues("WARNING")); got != 1 {
		t.Errorf("Expected alerts_total[WARNING] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.broadcasts.WithLabelValues("live")); got != 2 {
		t.Errorf("Expected broadcasts_total[live] to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.wsClients); got != 4 {
		t.Errorf("Expected ws_clients to be 4, got %f", got)
	}
	if got := testutil.ToFloat64(m.wsDisconnects); got != 1 {
		t.Errorf("Expected ws_disconnects_total to be 1, got %f", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordTrendComputation("line")
	m.RecordHTTPRequest("/stocks-trend", 200, 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`stock_tracker_trend_computations_total{mode="line"} 1`,
		`stock_tracker_http_requests_total{code="200",path="/stocks-trend"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
