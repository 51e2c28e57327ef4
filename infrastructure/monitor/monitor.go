package monitor

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 行情指标
	tradesTotal   *prometheus.CounterVec
	candlesClosed *prometheus.CounterVec
	candlesPruned prometheus.Counter
	lastClose     *prometheus.GaugeVec

	// 推送指标
	broadcasts    *prometheus.CounterVec
	wsClients     prometheus.Gauge
	wsDisconnects prometheus.Counter
	busErrors     prometheus.Counter

	// 趋势计算
	trendComputations *prometheus.CounterVec

	// 告警
	alerts *prometheus.CounterVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "stock",
		Subsystem: "tracker",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		tradesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trades_total",
			Help:      "接收成交总数",
		}, []string{"symbol"}),
		candlesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "candles_closed_total",
			Help:      "收盘K线总数",
		}, []string{"symbol"}),
		candlesPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "candles_pruned_total",
			Help:      "过期清理的K线总数",
		}),
		lastClose: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "last_close",
			Help:      "最近收盘价",
		}, []string{"symbol"}),

		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "broadcasts_total",
			Help:      "推送的K线更新总数",
		}, []string{"type"}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_clients",
			Help:      "当前WebSocket客户端数",
		}),
		wsDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_disconnects_total",
			Help:      "WebSocket断开次数",
		}),
		busErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "bus_errors_total",
			Help:      "消息总线发布/解码错误数",
		}),

		trendComputations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trend_computations_total",
			Help:      "趋势计算次数",
		}, []string{"mode"}),

		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "alerts_total",
			Help:      "已发送的告警数",
		}, []string{"level"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"path", "code"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_latency_seconds",
			Help:      "HTTP请求延迟（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

func (m *Monitor) RecordTrade(symbol string) {
	m.tradesTotal.WithLabelValues(symbol).Inc()
}

func (m *Monitor) RecordCandleClosed(symbol string, close float64) {
	m.candlesClosed.WithLabelValues(symbol).Inc()
	m.lastClose.WithLabelValues(symbol).Set(close)
}

func (m *Monitor) RecordPruned(n int) {
	m.candlesPruned.Add(float64(n))
}

func (m *Monitor) RecordBroadcast(updateType string) {
	m.broadcasts.WithLabelValues(updateType).Inc()
}

func (m *Monitor) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

func (m *Monitor) RecordWSDisconnect() {
	m.wsDisconnects.Inc()
}

func (m *Monitor) RecordBusError() {
	m.busErrors.Inc()
}

func (m *Monitor) RecordTrendComputation(mode string) {
	m.trendComputations.WithLabelValues(mode).Inc()
}

func (m *Monitor) RecordAlert(level string) {
	m.alerts.WithLabelValues(level).Inc()
}

func (m *Monitor) RecordHTTPRequest(path string, code int, seconds float64) {
	m.httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(path).Observe(seconds)
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
