package market

import (
	"context"
	"sort"
	"sync/atomic"
	"time"
)

// DefaultBroadcastInterval 进行中 K 线的最大推送频率。
const DefaultBroadcastInterval = 500 * time.Millisecond

// Throttle 限制推送频率：收盘 K 线立即发送，进行中的 K 线按 symbol 合并，
// 每个周期只发送最新一条。
type Throttle struct {
	interval atomic.Int64
}

func NewThrottle(interval time.Duration) *Throttle {
	t := &Throttle{}
	t.SetInterval(interval)
	return t
}

// SetInterval 可在运行中调整（配置热更新）。
func (t *Throttle) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultBroadcastInterval
	}
	t.interval.Store(int64(d))
}

func (t *Throttle) Interval() time.Duration {
	return time.Duration(t.interval.Load())
}

// Run 消费 in 直到 ctx 结束或 in 关闭；退出前发送尚未发出的进行中 K 线。
func (t *Throttle) Run(ctx context.Context, in <-chan Update, out func(Update)) {
	pending := make(map[string]Update)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		symbols := make([]string, 0, len(pending))
		for sym := range pending {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			out(pending[sym])
		}
		clear(pending)
	}

	timer := time.NewTimer(t.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case u, ok := <-in:
			if !ok {
				flush()
				return
			}
			if u.UpdateType == Closed {
				// 同一 symbol 的旧进行中 K 线已过期
				delete(pending, u.Candle.Symbol)
				out(u)
				continue
			}
			pending[u.Candle.Symbol] = u
		case <-timer.C:
			flush()
			timer.Reset(t.Interval())
		}
	}
}
