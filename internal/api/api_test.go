package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"stock-tracker-go/infrastructure/logger"
	"stock-tracker-go/market"
	"stock-tracker-go/trend"
)

type fakeMetrics struct {
	mu       sync.Mutex
	requests map[string]int
	trends   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{requests: map[string]int{}, trends: map[string]int{}}
}

func (f *fakeMetrics) RecordHTTPRequest(path string, code int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[path+":"+http.StatusText(code)]++
}

func (f *fakeMetrics) RecordTrendComputation(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trends[mode]++
}

var base = time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)

func newHandler(m *fakeMetrics) (*Handler, *market.Service) {
	store := market.NewMemoryStore(0)
	for i, c := range []float64{100, 104, 102} {
		store.Append(market.Candle{Symbol: "AAPL", Timestamp: base.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c})
	}
	store.Append(market.Candle{Symbol: "AMZN", Timestamp: base, Open: 180, High: 180, Low: 180, Close: 180})
	store.Append(market.Candle{Symbol: "AMZN", Timestamp: base.Add(time.Minute), Open: 178, High: 178, Low: 178, Close: 178})

	svc := market.NewService(market.NewCandleAggregator(time.Minute), store, nil)
	// nil *fakeMetrics 不能直接放进接口
	var mt Metrics
	if m != nil {
		mt = m
	}
	return New(svc, []string{"AAPL", "AMZN", "MSFT"}, nil, mt), svc
}

func serve(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newServer(t *testing.T, m *fakeMetrics) (*httptest.Server, *market.Service) {
	h, svc := newHandler(m)
	return serve(t, h), svc
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHistory(t *testing.T) {
	srv, _ := newServer(t, nil)
	var hist map[string][]market.Candle
	code := getJSON(t, srv.URL+"/stocks-history", &hist)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, hist["AAPL"], 3)
	assert.Len(t, hist["AMZN"], 2)
}

func TestCandles(t *testing.T) {
	srv, _ := newServer(t, nil)

	var candles []market.Candle
	code := getJSON(t, srv.URL+"/stocks-candles?symbol=aapl", &candles)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, candles, 3)
	assert.Equal(t, 102.0, candles[2].Close)

	var body map[string]string
	code = getJSON(t, srv.URL+"/stocks-candles", &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "symbol is required", body["error"])
}

func TestTrend(t *testing.T) {
	m := newFakeMetrics()
	srv, _ := newServer(t, m)

	var resp trendResponse
	code := getJSON(t, srv.URL+"/stocks-trend?symbol=AAPL&mode=candlesticks", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Equal(t, string(trend.Candlesticks), resp.Mode)
	assert.Equal(t, trend.Up, resp.Trend.Direction)
	assert.InDelta(t, 2.0, resp.Trend.Change.Amount, 1e-9)
	assert.InDelta(t, 2.0, resp.Trend.Change.Percentage, 1e-9)
	require.Len(t, resp.Trend.Series, 3)
	assert.NotNil(t, resp.Trend.Series[0].Open)
	assert.Nil(t, resp.Trend.Series[0].Value)
	assert.Equal(t, "$ 102.00", resp.Row.Price)
	assert.Equal(t, "+2.00 (+2.00%)", resp.Row.Change)

	m.mu.Lock()
	assert.Equal(t, 1, m.trends[string(trend.Candlesticks)])
	assert.Equal(t, 1, m.requests["/stocks-trend:OK"])
	m.mu.Unlock()
}

func TestTrendIncludesLiveCandle(t *testing.T) {
	srv, svc := newServer(t, nil)
	svc.OnTrade(market.Trade{Symbol: "AAPL", Price: 95, Volume: 1, Ts: base.Add(10 * time.Minute)})

	var closedOnly, withLive trendResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/stocks-trend?symbol=AAPL", &closedOnly))
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/stocks-trend?symbol=AAPL&live=true", &withLive))

	assert.Equal(t, trend.Up, closedOnly.Trend.Direction)
	assert.Equal(t, trend.Down, withLive.Trend.Direction)
	assert.Len(t, withLive.Trend.Series, 4)
}

func TestTrendRejectsBadParams(t *testing.T) {
	srv, _ := newServer(t, nil)
	for _, q := range []string{"?mode=line", "?symbol=AAPL&mode=bars", "?symbol=AAPL&live=maybe"} {
		var body map[string]string
		code := getJSON(t, srv.URL+"/stocks-trend"+q, &body)
		assert.Equal(t, http.StatusBadRequest, code, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestTrendEmptySymbol(t *testing.T) {
	srv, _ := newServer(t, nil)
	var resp trendResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/stocks-trend?symbol=TSLA", &resp))
	assert.Equal(t, trend.Flat, resp.Trend.Direction)
	assert.Empty(t, resp.Trend.Series)
	assert.Equal(t, "$ 0.00", resp.Row.Price)
}

func TestRows(t *testing.T) {
	m := newFakeMetrics()
	srv, _ := newServer(t, m)

	var rows []trend.Row
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/stocks-rows", &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "green", rows[0].Color)
	assert.Equal(t, "AMZN", rows[1].Symbol)
	assert.Equal(t, "red", rows[1].Color)
	assert.Equal(t, " -2.00 ( -1.11%)", rows[1].Change)
	assert.Equal(t, "MSFT", rows[2].Symbol)
	assert.Equal(t, trend.Flat, rows[2].Direction)
	assert.NotNil(t, rows[2].Series)

	m.mu.Lock()
	assert.Equal(t, 3, m.trends[string(trend.Line)])
	m.mu.Unlock()
}

func TestErrorsAreCounted(t *testing.T) {
	m := newFakeMetrics()
	h, _ := newHandler(m)
	h.Health = func() error { return errors.New("bus closed") }
	srv := serve(t, h)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/stocks-candles", &body))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/healthz", &body))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.requests["/stocks-candles:Bad Request"])
	assert.Equal(t, 1, m.requests["/healthz:Service Unavailable"])
}

func TestHealthz(t *testing.T) {
	h, _ := newHandler(nil)
	var down atomic.Bool
	h.Health = func() error {
		if down.Load() {
			return errors.New("hub not started")
		}
		return nil
	}
	srv := serve(t, h)

	var body map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])

	down.Store(true)
	body = nil
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "hub not started", body["error"])
}

func TestFailedRequestIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h, _ := newHandler(nil)
	h.log = &logger.Logger{Logger: zap.New(core)}
	h.Health = func() error { return errors.New("scheduler exited") }
	srv := serve(t, h)

	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/healthz", nil))
	entries := logs.FilterMessage("http_request_failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/healthz", fields["path"])
	assert.Equal(t, int64(http.StatusServiceUnavailable), fields["code"])
}
