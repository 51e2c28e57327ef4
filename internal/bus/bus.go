// Package bus fans candle updates out to every delivery endpoint, either
// in-process or across server instances through Redis pub/sub.
package bus

import (
	"context"
	"errors"
	"sync"

	"stock-tracker-go/market"
)

var ErrClosed = errors.New("bus closed")

type Bus interface {
	Publish(ctx context.Context, u market.Update) error
	// Subscribe returns a channel closed when ctx ends or the bus closes.
	Subscribe(ctx context.Context) (<-chan market.Update, error)
	Close() error
}

// Local is an in-process bus; slow subscribers lose updates.
type Local struct {
	buffer int

	mu     sync.RWMutex
	subs   map[chan market.Update]struct{}
	closed bool
}

func NewLocal(buffer int) *Local {
	if buffer <= 0 {
		buffer = 64
	}
	return &Local{buffer: buffer, subs: make(map[chan market.Update]struct{})}
}

func (l *Local) Publish(_ context.Context, u market.Update) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	for ch := range l.subs {
		select {
		case ch <- u:
		default:
		}
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context) (<-chan market.Update, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	ch := make(chan market.Update, l.buffer)
	l.subs[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		l.remove(ch)
	}()
	return ch, nil
}

func (l *Local) remove(ch chan market.Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}
	return nil
}
