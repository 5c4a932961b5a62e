package evm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNotSwapLog is returned when a log is not a pair Swap event.
var ErrNotSwapLog = errors.New("log is not a swap event")

// SwapLog is a decoded pair Swap event.
type SwapLog struct {
	Pool        common.Address
	Sender      common.Address
	To          common.Address
	Amount0In   *big.Int
	Amount1In   *big.Int
	Amount0Out  *big.Int
	Amount1Out  *big.Int
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}

// DecodeSwapLog decodes a raw log into a SwapLog.
func DecodeSwapLog(lg types.Log) (*SwapLog, error) {
	if len(lg.Topics) != 3 || lg.Topics[0] != SwapTopic {
		return nil, ErrNotSwapLog
	}

	out, err := pairABI.Unpack("Swap", lg.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack swap: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unpack swap: got %d values, want 4", len(out))
	}

	amounts := make([]*big.Int, 4)
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unpack swap: value %d is %T", i, v)
		}
		amounts[i] = n
	}

	return &SwapLog{
		Pool:        lg.Address,
		Sender:      common.BytesToAddress(lg.Topics[1].Bytes()),
		To:          common.BytesToAddress(lg.Topics[2].Bytes()),
		Amount0In:   amounts[0],
		Amount1In:   amounts[1],
		Amount0Out:  amounts[2],
		Amount1Out:  amounts[3],
		TxHash:      lg.TxHash,
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
	}, nil
}
