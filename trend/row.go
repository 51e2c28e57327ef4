package trend

import (
	"fmt"

	"stock-tracker-go/market"
)

// Row is the display-ready summary of one symbol in the stock list.
type Row struct {
	Symbol    string    `json:"symbol"`
	Price     string    `json:"price"`
	Change    string    `json:"change"`
	Color     string    `json:"color"`
	Direction Direction `json:"direction"`
	Series    []Point   `json:"series"`
}

// Summarize builds the list row for symbol using the line series.
func Summarize(symbol string, candles []market.Candle) Row {
	return RowFrom(symbol, Derive(candles, Line))
}

// RowFrom formats an already derived result.
func RowFrom(symbol string, res Result) Row {
	var last float64
	if res.Newest != nil {
		last = res.Newest.Close
	}
	series := res.Series
	if series == nil {
		series = []Point{}
	}
	return Row{
		Symbol:    symbol,
		Price:     fmt.Sprintf("$ %.2f", last),
		Change:    fmt.Sprintf("%s%.2f (%s%.2f%%)", res.Sign, res.Change.Amount, res.Sign, res.Change.Percentage),
		Color:     res.Color,
		Direction: res.Direction,
		Series:    series,
	}
}
