package market

import "sync"

// Publisher 一个轻量事件分发器；订阅者来不及消费时丢弃更新。
type Publisher struct {
	mu   sync.RWMutex
	subs []chan Update
	size int
}

// NewPublisher 创建分发器，buffer 为每个订阅通道的容量。
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Publisher{
		subs: make([]chan Update, 0),
		size: buffer,
	}
}

func (p *Publisher) Subscribe() <-chan Update {
	ch := make(chan Update, p.size)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Publish 返回被丢弃的订阅者数量。
func (p *Publisher) Publish(u Update) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dropped := 0
	for _, ch := range p.subs {
		select {
		case ch <- u:
		default:
			dropped++
		}
	}
	return dropped
}
