package market

import (
	"sort"
	"sync"
	"time"
)

// Store 保存已收盘的 K 线，只在内存中。
type Store interface {
	Append(c Candle)
	Candles(symbol string) []Candle
	History() map[string][]Candle
	Symbols() []string
	Prune(before time.Time) int
}

// MemoryStore 按 symbol 保存按时间排序的 K 线。
type MemoryStore struct {
	mu           sync.RWMutex
	maxPerSymbol int
	candles      map[string][]Candle
}

// NewMemoryStore 创建内存存储；maxPerSymbol <= 0 表示不限制。
func NewMemoryStore(maxPerSymbol int) *MemoryStore {
	return &MemoryStore{
		maxPerSymbol: maxPerSymbol,
		candles:      make(map[string][]Candle),
	}
}

// Append 追加一根 K 线；时间早于末尾的会按时间插入以保持有序。
func (s *MemoryStore) Append(c Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.candles[c.Symbol]
	n := len(list)
	if n == 0 || !c.Timestamp.Before(list[n-1].Timestamp) {
		list = append(list, c)
	} else {
		i := sort.Search(n, func(i int) bool { return list[i].Timestamp.After(c.Timestamp) })
		list = append(list, Candle{})
		copy(list[i+1:], list[i:])
		list[i] = c
	}
	if s.maxPerSymbol > 0 && len(list) > s.maxPerSymbol {
		list = append([]Candle(nil), list[len(list)-s.maxPerSymbol:]...)
	}
	s.candles[c.Symbol] = list
}

// Candles 返回 symbol 的 K 线副本（旧到新）。
func (s *MemoryStore) Candles(symbol string) []Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.candles[symbol]
	out := make([]Candle, len(list))
	copy(out, list)
	return out
}

// History 返回所有 symbol 的 K 线副本。
func (s *MemoryStore) History() map[string][]Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Candle, len(s.candles))
	for sym, list := range s.candles {
		cp := make([]Candle, len(list))
		copy(cp, list)
		out[sym] = cp
	}
	return out
}

// Symbols 返回排序后的 symbol 列表。
func (s *MemoryStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.candles))
	for sym := range s.candles {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Prune 删除时间早于 before 的 K 线，返回删除数量。
func (s *MemoryStore) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for sym, list := range s.candles {
		i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(before) })
		if i == 0 {
			continue
		}
		removed += i
		if i == len(list) {
			delete(s.candles, sym)
			continue
		}
		s.candles[sym] = append([]Candle(nil), list[i:]...)
	}
	return removed
}
