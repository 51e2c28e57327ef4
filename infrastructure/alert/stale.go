package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// StalenessSource 返回 symbol 距上次成交的时间
type StalenessSource interface {
	Staleness(symbol string) time.Duration
}

// StaleFeedChecker 检查配置的 symbol 是否长时间没有成交。
// 超过 After 发 WARNING；恢复后发一次 INFO 并重置限流。
type StaleFeedChecker struct {
	Source  StalenessSource
	Symbols []string
	After   time.Duration
	Alerts  *Manager

	mu    sync.Mutex
	stale map[string]bool
}

func NewStaleFeedChecker(src StalenessSource, symbols []string, after time.Duration, alerts *Manager) *StaleFeedChecker {
	return &StaleFeedChecker{
		Source:  src,
		Symbols: symbols,
		After:   after,
		Alerts:  alerts,
		stale:   make(map[string]bool),
	}
}

// Check 执行一次检查，返回当前 stale 的 symbol。
// 告警发送失败不影响检查结果，错误合并后一并返回。
func (c *StaleFeedChecker) Check() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		stale []string
		errs  []error
	)
	for _, sym := range c.Symbols {
		age := c.Source.Staleness(sym)
		if age > c.After {
			stale = append(stale, sym)
			c.stale[sym] = true
			if _, err := c.Alerts.Warn(sym, "no trades received", map[string]interface{}{
				"since": age.Truncate(time.Second).String(),
			}); err != nil {
				errs = append(errs, fmt.Errorf("warn %s: %w", sym, err))
			}
			continue
		}
		if c.stale[sym] {
			delete(c.stale, sym)
			c.Alerts.Resolve(sym)
			if _, err := c.Alerts.Notify(sym, "trades resumed", map[string]interface{}{
				"threshold": fmt.Sprint(c.After),
			}); err != nil {
				errs = append(errs, fmt.Errorf("notify %s: %w", sym, err))
			}
		}
	}
	return stale, errors.Join(errs...)
}
