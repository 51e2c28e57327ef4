package market

import "testing"

func TestPublisher(t *testing.T) {
	p := NewPublisher(1)
	ch := p.Subscribe()
	p.Publish(Update{UpdateType: Live, Candle: Candle{Symbol: "AAPL", Close: 2}})
	if got := <-ch; got.UpdateType != Live || got.Candle.Close != 2 {
		t.Fatalf("unexpected update %+v", got)
	}
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := NewPublisher(1)
	_ = p.Subscribe()
	if dropped := p.Publish(Update{}); dropped != 0 {
		t.Fatalf("first publish should fit in buffer")
	}
	if dropped := p.Publish(Update{}); dropped != 1 {
		t.Fatalf("expected one dropped subscriber, got %d", dropped)
	}
}
