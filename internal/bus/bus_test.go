package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-tracker-go/market"
)

func TestLocalFanOut(t *testing.T) {
	b := NewLocal(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := b.Subscribe(ctx)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx)
	require.NoError(t, err)

	u := market.Update{UpdateType: market.Closed, Candle: market.Candle{Symbol: "AAPL", Close: 1}}
	require.NoError(t, b.Publish(ctx, u))
	assert.Equal(t, u, <-a)
	assert.Equal(t, u, <-c)
}

func TestLocalUnsubscribeOnCancel(t *testing.T) {
	b := NewLocal(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription should close after cancel")
	}
	require.NoError(t, b.Publish(context.Background(), market.Update{UpdateType: market.Live}))
}

func TestLocalClose(t *testing.T) {
	b := NewLocal(1)
	ch, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, b.Close())
	_, ok := <-ch
	assert.False(t, ok)

	assert.ErrorIs(t, b.Publish(context.Background(), market.Update{}), ErrClosed)
	_, err = b.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, b.Close())
}

func TestEncodeDecode(t *testing.T) {
	u := market.Update{
		UpdateType: market.Live,
		Candle: market.Candle{
			Symbol:    "AMZN",
			Timestamp: time.Date(2024, 5, 1, 14, 31, 0, 0, time.UTC),
			Open:      1, High: 3, Low: 0.5, Close: 2,
		},
	}
	data, err := Encode(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"updateType":"live"`)
	assert.Contains(t, string(data), `"high":3`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, got.Candle.Timestamp.Equal(u.Candle.Timestamp))
	assert.Equal(t, u.Candle.Close, got.Candle.Close)

	_, err = Decode([]byte(`{"updateType":"snapshot"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
