package domain

import "time"

// BarIntervalMs is the fixed intraday bar granularity (30 minutes).
const BarIntervalMs = 30 * 60 * 1000

// PriceBar is one intraday OHLCV observation for a concrete contract at
// fixed 30-minute granularity. Keyed by (Root, Month, Year, TimestampMs).
type PriceBar struct {
	Root        string    `json:"root"`
	Month       MonthCode `json:"month_code"`
	Year        int       `json:"year"`
	TimestampMs int64     `json:"timestamp_ms"` // bar start, Unix milliseconds UTC
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
}

// Symbol returns the canonical contract code the bar belongs to.
func (b PriceBar) Symbol() string {
	return ContractSymbol(b.Root, b.Month, b.Year)
}

// Time returns the bar start time in UTC.
func (b PriceBar) Time() time.Time {
	return time.UnixMilli(b.TimestampMs).UTC()
}

// Date returns the bar's UTC calendar date (midnight).
func (b PriceBar) Date() time.Time {
	t := b.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SpreadBar is one derived two-leg observation: each OHLC field is
// leg1 minus leg2 at the same timestamp. Produced only for timestamps
// present in both legs; never persisted. Both source bars are carried so
// callers can apply their own volume convention.
type SpreadBar struct {
	TimestampMs int64     `json:"timestamp_ms"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Leg1        *PriceBar `json:"leg1"`
	Leg2        *PriceBar `json:"leg2"`
}
