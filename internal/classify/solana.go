package classify

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/solana"
)

const (
	// lamportDust is the smallest lamport delta treated as swap value (0.0001 SOL).
	lamportDust = 100_000
)

// fallbackNative is reported when no lamport delta clears the dust threshold.
var fallbackNative = decimal.New(1, -3)

// SolanaTx is a fetched Solana transaction.
type SolanaTx struct {
	Tx *solana.Transaction
}

// Family implements RawEvent.
func (SolanaTx) Family() domain.Family { return domain.FamilySolana }

// SolanaClassifier classifies Solana transactions by token balance deltas.
type SolanaClassifier struct {
	now func() time.Time
}

// NewSolanaClassifier creates a Solana classifier.
func NewSolanaClassifier() *SolanaClassifier {
	return &SolanaClassifier{now: time.Now}
}

// Family implements Classifier.
func (*SolanaClassifier) Family() domain.Family { return domain.FamilySolana }

type tokenDelta struct {
	account  string
	owner    string
	delta    decimal.Decimal // base units
	decimals uint8
}

// Classify implements Classifier.
func (c *SolanaClassifier) Classify(raw RawEvent, token *domain.TrackedToken) (*domain.SwapEvent, error) {
	ev, ok := raw.(*SolanaTx)
	if !ok {
		return nil, fmt.Errorf("solana classifier: unexpected event %T", raw)
	}
	tx := ev.Tx
	if tx == nil || tx.Meta == nil || tx.Failed() {
		return nil, ErrNotSwap
	}
	feePayer := tx.FeePayer()
	if feePayer == "" {
		return nil, ErrNotSwap
	}

	deltas, err := mintDeltas(tx, token.Address)
	if err != nil {
		return nil, err
	}
	row := pickRow(deltas, feePayer, token.Address)
	if row == nil || row.delta.IsZero() {
		return nil, ErrNotSwap
	}

	out := &domain.SwapEvent{
		Chain:        domain.ChainSolana,
		TxHash:       tx.Signature,
		Wallet:       feePayer,
		TokenAmount:  row.delta.Abs().Shift(-int32(row.decimals)),
		NativeAmount: nativeAmount(tx.Meta),
		BlockNumber:  uint64(tx.Slot),
		Timestamp:    c.now().UTC(),
	}
	if tx.BlockTime > 0 {
		out.Timestamp = time.Unix(tx.BlockTime, 0).UTC()
	}
	if row.delta.IsPositive() {
		out.Direction = domain.DirectionBuy
	} else {
		out.Direction = domain.DirectionSell
	}
	return out, nil
}

// mintDeltas returns post minus pre balances of the mint per token account.
func mintDeltas(tx *solana.Transaction, mint string) ([]*tokenDelta, error) {
	keys := tx.AllAccountKeys()
	byIndex := make(map[int]*tokenDelta)
	var order []int

	apply := func(balances []solana.TokenBalance, sign int64) error {
		for _, b := range balances {
			if b.Mint != mint {
				continue
			}
			amount, err := decimal.NewFromString(b.Amount)
			if err != nil {
				return fmt.Errorf("token balance amount %q: %w", b.Amount, err)
			}
			d, ok := byIndex[b.AccountIndex]
			if !ok {
				d = &tokenDelta{decimals: b.Decimals}
				if b.AccountIndex >= 0 && b.AccountIndex < len(keys) {
					d.account = keys[b.AccountIndex]
				}
				byIndex[b.AccountIndex] = d
				order = append(order, b.AccountIndex)
			}
			if b.Owner != "" {
				d.owner = b.Owner
			}
			d.delta = d.delta.Add(amount.Mul(decimal.NewFromInt(sign)))
		}
		return nil
	}

	if err := apply(tx.Meta.PreTokenBalances, -1); err != nil {
		return nil, err
	}
	if err := apply(tx.Meta.PostTokenBalances, 1); err != nil {
		return nil, err
	}

	out := make([]*tokenDelta, 0, len(order))
	for _, idx := range order {
		out = append(out, byIndex[idx])
	}
	return out, nil
}

// pickRow selects the fee payer's balance row: by owner, then by associated
// token account, then the largest absolute delta.
func pickRow(rows []*tokenDelta, feePayer, mint string) *tokenDelta {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.owner == feePayer {
			return r
		}
	}

	for _, program := range []string{solana.TokenProgramID, solana.Token2022ProgramID} {
		ata, err := solana.AssociatedTokenAddress(feePayer, mint, program)
		if err != nil {
			break
		}
		for _, r := range rows {
			if r.account == ata {
				return r
			}
		}
	}

	best := rows[0]
	for _, r := range rows[1:] {
		if r.delta.Abs().GreaterThan(best.delta.Abs()) {
			best = r
		}
	}
	return best
}

// nativeAmount returns the largest lamport movement in SOL, or the nominal
// fallback when every movement is dust.
func nativeAmount(meta *solana.TransactionMeta) decimal.Decimal {
	var best uint64
	n := min(len(meta.PreBalances), len(meta.PostBalances))
	for i := 0; i < n; i++ {
		pre, post := meta.PreBalances[i], meta.PostBalances[i]
		var d uint64
		if post > pre {
			d = post - pre
		} else {
			d = pre - post
		}
		if d > best {
			best = d
		}
	}
	if best <= lamportDust {
		return fallbackNative
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(best), -9)
}
