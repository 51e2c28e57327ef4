package market

import "time"

// Candle 一根 OHLC K 线。Timestamp 为收盘时间。
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// UpdateType 区分进行中的 K 线与已收盘的 K 线。
type UpdateType string

const (
	Live   UpdateType = "live"
	Closed UpdateType = "closed"
)

// Update 是推送给客户端的一条 K 线更新。
type Update struct {
	UpdateType UpdateType `json:"updateType"`
	Candle     Candle     `json:"candle"`
}
