package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a swap relative to the tracked token.
type Direction string

// Direction constants
const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Transaction is the durable record of one classified swap.
// Corresponds to transactions table in PostgreSQL. Unique on (Chain, TxHash).
type Transaction struct {
	ID           int64
	TokenID      int64
	Chain        Chain
	TxHash       string
	Wallet       string
	Direction    Direction
	TokenAmount  decimal.Decimal
	NativeAmount decimal.Decimal
	USDValue     decimal.NullDecimal // invalid when price is unknown
	Timestamp    time.Time
	BlockNumber  uint64
	AlertSent    bool
	CreatedAt    time.Time
}

// NewTransaction builds an unsaved Transaction from a classified event.
func NewTransaction(tokenID int64, ev *SwapEvent, usd decimal.NullDecimal) *Transaction {
	return &Transaction{
		TokenID:      tokenID,
		Chain:        ev.Chain,
		TxHash:       ev.TxHash,
		Wallet:       ev.Wallet,
		Direction:    ev.Direction,
		TokenAmount:  ev.TokenAmount,
		NativeAmount: ev.NativeAmount,
		USDValue:     usd,
		Timestamp:    ev.Timestamp,
		BlockNumber:  ev.BlockNumber,
	}
}
