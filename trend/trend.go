// Package trend derives trend statistics and chart series from a candle series.
package trend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stock-tracker-go/market"
)

// Direction of the price move between the first and last candle.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// DisplayMode selects the shape of the chart series.
type DisplayMode string

const (
	Line         DisplayMode = "line"
	Candlesticks DisplayMode = "candlesticks"
)

var ErrUnknownMode = errors.New("unknown display mode")

// ParseDisplayMode accepts "line" or "candlesticks"; empty means line.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Line):
		return Line, nil
	case string(Candlesticks):
		return Candlesticks, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

var colors = map[Direction]string{
	Up:   "green",
	Down: "red",
	Flat: "black",
}

// Color maps a direction to its display color.
func Color(d Direction) string {
	if c, ok := colors[d]; ok {
		return c
	}
	return colors[Flat]
}

// Sign is "+" for an upward move and a single space otherwise.
func Sign(d Direction) string {
	if d == Up {
		return "+"
	}
	return " "
}

// Point is one chart sample. Line mode fills Value, candlestick mode fills OHLC.
type Point struct {
	Timestamp int64    `json:"timestamp"`
	Value     *float64 `json:"value,omitempty"`
	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Close     *float64 `json:"close,omitempty"`
}

// Change between the oldest and newest close.
type Change struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type Result struct {
	Oldest    *market.Candle `json:"oldest,omitempty"`
	Newest    *market.Candle `json:"newest,omitempty"`
	Direction Direction      `json:"direction"`
	Change    Change         `json:"change"`
	Series    []Point        `json:"series"`
	Color     string         `json:"color"`
	Sign      string         `json:"sign"`
}

// Derive computes the trend of candles (oldest first).
// Fewer than two candles give a flat, zero result. A zero oldest close
// gives a zero percentage.
func Derive(candles []market.Candle, mode DisplayMode) Result {
	res := Result{
		Direction: Flat,
		Series:    Series(candles, mode),
	}
	if len(candles) > 0 {
		oldest, newest := candles[0], candles[len(candles)-1]
		res.Oldest, res.Newest = &oldest, &newest
	}
	if len(candles) >= 2 {
		res.Change = change(res.Oldest.Close, res.Newest.Close)
		res.Direction = direction(res.Change.Amount)
	}
	res.Color = Color(res.Direction)
	res.Sign = Sign(res.Direction)
	return res
}

func change(first, last float64) Change {
	c := Change{Amount: last - first}
	if first != 0 {
		c.Percentage = c.Amount / first * 100
	}
	return c
}

func direction(amount float64) Direction {
	switch {
	case amount > 0:
		return Up
	case amount < 0:
		return Down
	default:
		return Flat
	}
}

// Series maps candles to chart points, preserving order.
func Series(candles []market.Candle, mode DisplayMode) []Point {
	out := make([]Point, len(candles))
	for i, c := range candles {
		p := Point{Timestamp: c.Timestamp.UnixMilli()}
		if mode == Candlesticks {
			o, h, l, cl := c.Open, c.High, c.Low, c.Close
			p.Open, p.High, p.Low, p.Close = &o, &h, &l, &cl
		} else {
			v := c.Close
			p.Value = &v
		}
		out[i] = p
	}
	return out
}

// MarshalJSON keeps the empty series as [] rather than null.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	if r.Series == nil {
		r.Series = []Point{}
	}
	return json.Marshal(alias(r))
}

// Clone returns a deep copy; the pointers in r are not shared with the copy.
func (r Result) Clone() Result {
	out := r
	if r.Oldest != nil {
		o := *r.Oldest
		out.Oldest = &o
	}
	if r.Newest != nil {
		n := *r.Newest
		out.Newest = &n
	}
	if r.Series != nil {
		out.Series = make([]Point, len(r.Series))
		for i, p := range r.Series {
			out.Series[i] = p.clone()
		}
	}
	return out
}

func (p Point) clone() Point {
	p.Value = cloneFloat(p.Value)
	p.Open = cloneFloat(p.Open)
	p.High = cloneFloat(p.High)
	p.Low = cloneFloat(p.Low)
	p.Close = cloneFloat(p.Close)
	return p
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
