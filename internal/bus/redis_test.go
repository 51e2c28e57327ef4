package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-tracker-go/market"
)

// 需要真实 Redis：STOCK_TEST_REDIS_ADDR=localhost:6379 go test ./internal/bus
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("STOCK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCK_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	r, err := NewRedis(ctx, addr, "", 0, "stock:test:"+uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decodeErrs := make(chan error, 1)
	r.OnDecodeError = func(err error) { decodeErrs <- err }

	updates, err := r.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, r.client.Publish(ctx, r.channel, "not json").Err())
	u := market.Update{UpdateType: market.Closed, Candle: market.Candle{Symbol: "AAPL", Close: 190.5, Timestamp: time.Unix(1714573860, 0).UTC()}}
	require.NoError(t, r.Publish(ctx, u))

	select {
	case got := <-updates:
		assert.Equal(t, u.Candle.Close, got.Candle.Close)
		assert.True(t, u.Candle.Timestamp.Equal(got.Candle.Timestamp))
	case <-time.After(3 * time.Second):
		t.Fatal("no update received")
	}
	select {
	case err := <-decodeErrs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("decode error not reported")
	}

	cancel()
	_, open := <-updates
	for open {
		_, open = <-updates
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1", "", 0, "stock:test")
	assert.Error(t, err)
}

func TestNewRedisWithClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	r := NewRedisWithClient(client, "stock:candles")
	assert.Equal(t, "stock:candles", r.channel)
	assert.NoError(t, r.Close())
}
