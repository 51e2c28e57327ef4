package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Level 告警级别
type Level string

const (
	Info     Level = "INFO"
	Warning  Level = "WARNING"
	Critical Level = "CRITICAL"
)

// Alert 告警信息
type Alert struct {
	Level     Level
	Symbol    string // 为空表示与具体股票无关
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Key 标识一条限流记录
type Key struct {
	Level   Level
	Symbol  string
	Message string
}

func (a Alert) key() Key {
	return Key{Level: a.Level, Symbol: a.Symbol, Message: a.Message}
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Metrics 告警计数（可选）
type Metrics interface {
	RecordAlert(level string)
}

// Throttler 同一告警在 interval 内只发送一次
type Throttler struct {
	lastSent map[Key]time.Time
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[Key]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow 检查是否允许发送，允许时记录发送时间
func (t *Throttler) Allow(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	last, ok := t.lastSent[key]
	if !ok || now.Sub(last) >= t.interval {
		t.lastSent[key] = now
		return true
	}
	return false
}

// Reset 清除 match 返回 true 的限流记录
func (t *Throttler) Reset(match func(key Key) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.lastSent {
		if match(k) {
			delete(t.lastSent, k)
		}
	}
}

// Manager 告警管理器，把告警分发到所有通道
type Manager struct {
	channels []Channel
	throttle *Throttler
	metrics  Metrics
	mu       sync.RWMutex
}

func NewManager(channels []Channel, throttleInterval time.Duration, metrics Metrics) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
		metrics:  metrics,
	}
}

// Send 发送告警；被限流时返回 false。
// 只有全部通道都失败时才返回错误。
func (m *Manager) Send(a Alert) (bool, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if !m.throttle.Allow(a.key()) {
		return false, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.Name(), err))
		}
	}
	if len(m.channels) > 0 && len(errs) == len(m.channels) {
		return false, errors.Join(errs...)
	}
	if m.metrics != nil {
		m.metrics.RecordAlert(string(a.Level))
	}
	return true, nil
}

func (m *Manager) Warn(symbol, message string, fields map[string]interface{}) (bool, error) {
	return m.Send(Alert{Level: Warning, Symbol: symbol, Message: message, Fields: fields})
}

func (m *Manager) Notify(symbol, message string, fields map[string]interface{}) (bool, error) {
	return m.Send(Alert{Level: Info, Symbol: symbol, Message: message, Fields: fields})
}

// Resolve 清除 symbol 的限流记录，下次出问题时立即告警
func (m *Manager) Resolve(symbol string) {
	m.throttle.Reset(func(key Key) bool { return key.Symbol == symbol })
}

// AddChannel 添加告警通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// Channels 返回所有通道名称
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
