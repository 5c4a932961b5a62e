package classify

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/evm"
)

// EVMSwap is a decoded pair Swap log with its pool metadata.
type EVMSwap struct {
	Chain     domain.Chain
	Log       *evm.SwapLog
	Pool      evm.PoolInfo
	Timestamp time.Time
}

// Family implements RawEvent.
func (EVMSwap) Family() domain.Family { return domain.FamilyEVM }

// EVMClassifier classifies constant-product pair swaps.
type EVMClassifier struct{}

// NewEVMClassifier creates an EVM classifier.
func NewEVMClassifier() *EVMClassifier { return &EVMClassifier{} }

// Family implements Classifier.
func (*EVMClassifier) Family() domain.Family { return domain.FamilyEVM }

// Classify implements Classifier.
func (*EVMClassifier) Classify(raw RawEvent, token *domain.TrackedToken) (*domain.SwapEvent, error) {
	ev, ok := raw.(*EVMSwap)
	if !ok {
		return nil, fmt.Errorf("evm classifier: unexpected event %T", raw)
	}
	if ev.Log == nil {
		return nil, ErrNotSwap
	}
	lg := ev.Log

	var (
		trackedIn, trackedOut, counterIn, counterOut *big.Int
		trackedDec, counterDec                       uint8
	)
	switch ev.Pool.Side(common.HexToAddress(token.Address)) {
	case 0:
		trackedIn, trackedOut = lg.Amount0In, lg.Amount0Out
		counterIn, counterOut = lg.Amount1In, lg.Amount1Out
		trackedDec, counterDec = ev.Pool.Decimals0, ev.Pool.Decimals1
	case 1:
		trackedIn, trackedOut = lg.Amount1In, lg.Amount1Out
		counterIn, counterOut = lg.Amount0In, lg.Amount0Out
		trackedDec, counterDec = ev.Pool.Decimals1, ev.Pool.Decimals0
	default:
		return nil, ErrTokenNotInPool
	}

	out := &domain.SwapEvent{
		Chain:       ev.Chain,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		Timestamp:   ev.Timestamp,
	}

	inNonZero, outNonZero := isPositive(trackedIn), isPositive(trackedOut)
	switch {
	case outNonZero && inNonZero:
		return nil, ErrAmbiguous
	case outNonZero:
		out.Direction = domain.DirectionBuy
		out.TokenAmount = scale(trackedOut, trackedDec)
		out.NativeAmount = scale(counterIn, counterDec)
		out.Wallet = domain.NormalizeAddress(ev.Chain, lg.To.Hex())
	case inNonZero:
		out.Direction = domain.DirectionSell
		out.TokenAmount = scale(trackedIn, trackedDec)
		out.NativeAmount = scale(counterOut, counterDec)
		out.Wallet = domain.NormalizeAddress(ev.Chain, lg.Sender.Hex())
	default:
		return nil, ErrNotSwap
	}
	return out, nil
}

func isPositive(n *big.Int) bool {
	return n != nil && n.Sign() > 0
}

func scale(n *big.Int, decimals uint8) decimal.Decimal {
	if n == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n, -int32(decimals))
}
