package model

import (
	"time"
)

// StampLayout is how timestamps are shown to users, always in local time.
const StampLayout = "2006-01-02 15:04:05"

// Coin is an entry of the upstream coin catalog
type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketSnapshot holds USD market data of a coin at fetch time.
// TotalSupply is 0 when upstream does not know it.
type MarketSnapshot struct {
	Price       float64   `json:"price"`
	TotalVolume float64   `json:"total_volume"`
	TotalSupply float64   `json:"total_supply"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

func (p PricePoint) Stamp() string {
	return p.Time.Local().Format(StampLayout)
}

// Times returns the timestamps of points, in order.
func Times(points []PricePoint) []time.Time {
	times := make([]time.Time, len(points))
	for i, p := range points {
		times[i] = p.Time
	}
	return times
}

// Prices returns the prices of points, in order.
func Prices(points []PricePoint) []float64 {
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	return prices
}
