package market

import (
	"context"
	"math/rand"
	"time"
)

// Generator 随机游走模拟成交，替代外部行情源。
type Generator struct {
	Symbols    []string
	Tick       time.Duration
	BasePrices map[string]float64
	// MaxStepPct 单笔成交相对上一价格的最大变动比例。
	MaxStepPct float64
	Seed       int64

	now func() time.Time
}

func NewGenerator(symbols []string, tick time.Duration, seed int64) *Generator {
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	return &Generator{
		Symbols:    symbols,
		Tick:       tick,
		BasePrices: make(map[string]float64),
		MaxStepPct: 0.002,
		Seed:       seed,
		now:        time.Now,
	}
}

// Run 每个 tick 为每个 symbol 产生一笔成交，直到 ctx 结束。
func (g *Generator) Run(ctx context.Context, onTrade func(Trade)) error {
	seed := g.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	prices := make(map[string]float64, len(g.Symbols))
	for _, sym := range g.Symbols {
		p := g.BasePrices[sym]
		if p <= 0 {
			p = 50 + r.Float64()*150
		}
		prices[sym] = p
	}

	ticker := time.NewTicker(g.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ts := g.now()
			for _, sym := range g.Symbols {
				prices[sym] = nextPrice(r, prices[sym], g.MaxStepPct)
				onTrade(Trade{
					Symbol: sym,
					Price:  prices[sym],
					Volume: float64(1 + r.Intn(100)),
					Ts:     ts,
				})
			}
		}
	}
}

func nextPrice(r *rand.Rand, last, maxStepPct float64) float64 {
	step := (r.Float64()*2 - 1) * maxStepPct
	p := last * (1 + step)
	if p <= 0.01 {
		return 0.01
	}
	return p
}
