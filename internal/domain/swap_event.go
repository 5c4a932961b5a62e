package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapEvent is a classified swap, not yet persisted.
type SwapEvent struct {
	Chain        Chain
	TxHash       string
	Wallet       string
	Direction    Direction
	TokenAmount  decimal.Decimal // human units
	NativeAmount decimal.Decimal // human units
	BlockNumber  uint64          // block number or slot
	Timestamp    time.Time
}
