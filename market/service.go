package market

import (
	"sync"
	"time"
)

// Service 把成交聚合成 K 线，保存已收盘的 K 线，并向订阅者广播。
type Service struct {
	agg   *CandleAggregator
	store Store
	pub   *Publisher

	mu   sync.RWMutex
	last map[string]time.Time

	// OnClosed 在每根 K 线收盘后调用（可选），用于日志/指标。
	OnClosed func(Candle)
}

func NewService(agg *CandleAggregator, store Store, pub *Publisher) *Service {
	if agg == nil {
		agg = NewCandleAggregator(DefaultCandleInterval)
	}
	if store == nil {
		store = NewMemoryStore(0)
	}
	if pub == nil {
		pub = NewPublisher(64)
	}
	return &Service{
		agg:   agg,
		store: store,
		pub:   pub,
		last:  make(map[string]time.Time),
	}
}

// Publisher 返回内部分发器。
func (s *Service) Publisher() *Publisher { return s.pub }

// OnTrade 聚合成交；收盘的 K 线先入库并广播，然后广播进行中的 K 线。
func (s *Service) OnTrade(t Trade) {
	closed, live := s.agg.OnTrade(t)

	s.mu.Lock()
	s.last[t.Symbol] = t.Ts
	s.mu.Unlock()

	if closed != nil {
		s.store.Append(*closed)
		if s.OnClosed != nil {
			s.OnClosed(*closed)
		}
		s.pub.Publish(Update{UpdateType: Closed, Candle: *closed})
	}
	s.pub.Publish(Update{UpdateType: Live, Candle: live})
}

// Candles 返回 symbol 已收盘的 K 线（旧到新）。
func (s *Service) Candles(symbol string) []Candle { return s.store.Candles(symbol) }

// CandlesWithLive 在已收盘的 K 线后追加进行中的 K 线。
func (s *Service) CandlesWithLive(symbol string) []Candle {
	out := s.store.Candles(symbol)
	if live, ok := s.agg.Live(symbol); ok {
		out = append(out, live)
	}
	return out
}

func (s *Service) History() map[string][]Candle { return s.store.History() }

func (s *Service) Symbols() []string { return s.store.Symbols() }

// Prune 删除早于 before 的 K 线。
func (s *Service) Prune(before time.Time) int { return s.store.Prune(before) }

// Staleness 返回距离上次成交的时间间隔；如无数据返回一年。
func (s *Service) Staleness(symbol string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.last[symbol]
	if !ok {
		return time.Hour * 24 * 365
	}
	return time.Since(ts)
}
