package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyAggregate holds per-day swap statistics for one token.
// Unique on (Date, Chain, TokenAddress).
type DailyAggregate struct {
	Date          time.Time // UTC midnight
	Chain         Chain
	TokenAddress  string
	BuyCount      int64
	SellCount     int64
	VolumeUSD     decimal.Decimal
	UniqueBuyers  int64
	UniqueSellers int64
}

// DayOf truncates t to the UTC day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
