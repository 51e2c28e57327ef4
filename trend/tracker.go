package trend

import (
	"slices"
	"sync"

	"stock-tracker-go/market"
)

// Tracker caches the last derived result and recomputes only when the
// candles or the display mode change. Every returned Result is a copy.
type Tracker struct {
	mu      sync.RWMutex
	mode    DisplayMode
	candles []market.Candle
	result  Result
	// computations counts actual recomputations.
	computations int
}

func NewTracker(mode DisplayMode) *Tracker {
	if mode == "" {
		mode = Line
	}
	t := &Tracker{mode: mode}
	t.result = Derive(nil, mode)
	return t
}

// Update replaces the tracked candles.
func (t *Tracker) Update(candles []market.Candle) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if slices.Equal(t.candles, candles) {
		return t.result.Clone()
	}
	t.candles = slices.Clone(candles)
	return t.recompute()
}

// Append adds c to the tail, or replaces the tail when it has the same
// timestamp (a live candle being updated).
func (t *Tracker) Append(c market.Candle) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.candles)
	if n > 0 && t.candles[n-1].Timestamp.Equal(c.Timestamp) {
		if t.candles[n-1] == c {
			return t.result.Clone()
		}
		t.candles[n-1] = c
	} else {
		t.candles = append(t.candles, c)
	}
	return t.recompute()
}

// Trim drops candles from the head so at most max remain.
func (t *Tracker) Trim(max int) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if max <= 0 || len(t.candles) <= max {
		return t.result.Clone()
	}
	t.candles = slices.Clone(t.candles[len(t.candles)-max:])
	return t.recompute()
}

func (t *Tracker) SetMode(mode DisplayMode) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mode == "" {
		mode = Line
	}
	if mode == t.mode {
		return t.result.Clone()
	}
	t.mode = mode
	return t.recompute()
}

func (t *Tracker) Current() Result {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result.Clone()
}

func (t *Tracker) Mode() DisplayMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// Candles returns a copy of the tracked candles.
func (t *Tracker) Candles() []market.Candle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.candles)
}

// Computations reports how many times the result was recomputed.
func (t *Tracker) Computations() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.computations
}

// caller holds t.mu.
func (t *Tracker) recompute() Result {
	t.result = Derive(t.candles, t.mode)
	t.computations++
	return t.result.Clone()
}
