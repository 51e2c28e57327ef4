package market

import (
	"sync"
	"time"
)

// DefaultCandleInterval 默认 K 线周期。
const DefaultCandleInterval = time.Minute

// openCandle 是某个 symbol 正在累积的 K 线。
type openCandle struct {
	openTime  time.Time
	closeTime time.Time
	open      float64
	high      float64
	low       float64
	close     float64
	volume    float64
}

func (o *openCandle) toCandle(symbol string) Candle {
	return Candle{
		Symbol:    symbol,
		Timestamp: o.closeTime,
		Open:      o.open,
		High:      o.high,
		Low:       o.low,
		Close:     o.close,
		Volume:    o.volume,
	}
}

// CandleAggregator 从成交流按 symbol 生成固定周期的 K 线。
type CandleAggregator struct {
	Interval time.Duration

	mu      sync.Mutex
	current map[string]*openCandle
}

func NewCandleAggregator(interval time.Duration) *CandleAggregator {
	if interval <= 0 {
		interval = DefaultCandleInterval
	}
	return &CandleAggregator{
		Interval: interval,
		current:  make(map[string]*openCandle),
	}
}

// OnTrade 把成交并入当前 K 线。
// 成交时间晚于当前 K 线的收盘时间时，旧 K 线收盘并作为 closed 返回，同时以该成交开启新 K 线。
// live 总是更新后的进行中 K 线。
func (a *CandleAggregator) OnTrade(t Trade) (closed *Candle, live Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.current[t.Symbol]
	if !ok || t.Ts.After(cur.closeTime) {
		if ok {
			c := cur.toCandle(t.Symbol)
			closed = &c
		}
		cur = &openCandle{
			openTime:  t.Ts,
			closeTime: t.Ts.Add(a.Interval),
			open:      t.Price,
			high:      t.Price,
			low:       t.Price,
		}
		a.current[t.Symbol] = cur
	}

	cur.close = t.Price
	cur.volume += t.Volume
	if t.Price > cur.high {
		cur.high = t.Price
	}
	if t.Price < cur.low {
		cur.low = t.Price
	}
	return closed, cur.toCandle(t.Symbol)
}

// Live 返回 symbol 当前进行中的 K 线。
func (a *CandleAggregator) Live(symbol string) (Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.current[symbol]
	if !ok {
		return Candle{}, false
	}
	return cur.toCandle(symbol), true
}
