package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeUp(t *testing.T) {
	row := Summarize("AAPL", candles(100, 110))
	assert.Equal(t, "AAPL", row.Symbol)
	assert.Equal(t, "$ 110.00", row.Price)
	assert.Equal(t, "+10.00 (+10.00%)", row.Change)
	assert.Equal(t, "green", row.Color)
	assert.Len(t, row.Series, 2)
}

func TestSummarizeDown(t *testing.T) {
	row := Summarize("AMZN", candles(200, 150))
	assert.Equal(t, "$ 150.00", row.Price)
	assert.Equal(t, " -50.00 ( -25.00%)", row.Change)
	assert.Equal(t, "red", row.Color)
	assert.Equal(t, Down, row.Direction)
}

func TestSummarizeEmpty(t *testing.T) {
	row := Summarize("MSFT", nil)
	assert.Equal(t, "$ 0.00", row.Price)
	assert.Equal(t, " 0.00 ( 0.00%)", row.Change)
	assert.Equal(t, Flat, row.Direction)
	assert.NotNil(t, row.Series)
}
