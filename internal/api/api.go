package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"stock-tracker-go/infrastructure/logger"
	"stock-tracker-go/market"
	"stock-tracker-go/trend"

	"go.uber.org/zap"
)

// CandleSource 提供已收盘（以及进行中）的 K 线。
type CandleSource interface {
	History() map[string][]market.Candle
	Candles(symbol string) []market.Candle
	CandlesWithLive(symbol string) []market.Candle
	Symbols() []string
}

// Metrics 是 API 上报的指标（可选）。
type Metrics interface {
	RecordHTTPRequest(path string, code int, seconds float64)
	RecordTrendComputation(mode string)
}

var errMissingSymbol = errors.New("symbol is required")

type Handler struct {
	source  CandleSource
	symbols []string
	log     *logger.Logger
	metrics Metrics
	// Health 返回非 nil 时 /healthz 报 503。
	Health func() error
}

// New 创建 API；symbols 为配置中的 symbol，即使还没有 K 线也会出现在 /stocks-rows。
func New(source CandleSource, symbols []string, log *logger.Logger, metrics Metrics) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{source: source, symbols: symbols, log: log, metrics: metrics}
}

// Register 把路由挂到 mux 上。
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /stocks-history", h.instrument("/stocks-history", h.history))
	mux.Handle("GET /stocks-candles", h.instrument("/stocks-candles", h.candles))
	mux.Handle("GET /stocks-trend", h.instrument("/stocks-trend", h.trend))
	mux.Handle("GET /stocks-rows", h.instrument("/stocks-rows", h.rows))
	mux.Handle("GET /healthz", h.instrument("/healthz", h.healthz))
}

// history 返回所有 symbol 的 K 线，按 symbol 分组。
func (h *Handler) history(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, h.source.History())
}

func (h *Handler) candles(w http.ResponseWriter, r *http.Request) int {
	symbol, err := symbolParam(r)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}
	return writeJSON(w, http.StatusOK, h.source.Candles(symbol))
}

type trendResponse struct {
	Symbol string       `json:"symbol"`
	Mode   string       `json:"mode"`
	Trend  trend.Result `json:"trend"`
	Row    trend.Row    `json:"row"`
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request) int {
	symbol, err := symbolParam(r)
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}
	mode, err := trend.ParseDisplayMode(r.URL.Query().Get("mode"))
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}
	live, err := boolParam(r, "live")
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}

	candles := h.source.Candles(symbol)
	if live {
		candles = h.source.CandlesWithLive(symbol)
	}
	res := trend.Derive(candles, mode)
	if h.metrics != nil {
		h.metrics.RecordTrendComputation(string(mode))
	}
	return writeJSON(w, http.StatusOK, trendResponse{
		Symbol: symbol,
		Mode:   string(mode),
		Trend:  res,
		Row:    trend.RowFrom(symbol, res),
	})
}

// rows 返回股票列表，每个 symbol 一行，按 symbol 排序。
func (h *Handler) rows(w http.ResponseWriter, r *http.Request) int {
	live, err := boolParam(r, "live")
	if err != nil {
		return writeError(w, http.StatusBadRequest, err)
	}
	seen := make(map[string]bool)
	var symbols []string
	for _, s := range append(append([]string(nil), h.symbols...), h.source.Symbols()...) {
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	rows := make([]trend.Row, 0, len(symbols))
	for _, s := range symbols {
		candles := h.source.Candles(s)
		if live {
			candles = h.source.CandlesWithLive(s)
		}
		rows = append(rows, trend.Summarize(s, candles))
		if h.metrics != nil {
			h.metrics.RecordTrendComputation(string(trend.Line))
		}
	}
	return writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) int {
	if h.Health != nil {
		if err := h.Health(); err != nil {
			return writeError(w, http.StatusServiceUnavailable, err)
		}
	}
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) instrument(path string, fn func(http.ResponseWriter, *http.Request) int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		code := fn(w, r)
		elapsed := time.Since(start)
		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(path, code, elapsed.Seconds())
		}
		if code >= http.StatusInternalServerError {
			h.log.Warn("http_request_failed",
				zap.String("path", path),
				zap.Int("code", code),
				zap.Duration("elapsed", elapsed))
		}
	})
}

func symbolParam(r *http.Request) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		return "", errMissingSymbol
	}
	return symbol, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
	return code
}

func writeError(w http.ResponseWriter, code int, err error) int {
	return writeJSON(w, code, map[string]string{"error": err.Error()})
}
