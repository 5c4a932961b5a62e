package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-bot/internal/alert"
	"safeguard-bot/internal/classify"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/mev"
	"safeguard-bot/internal/notify/stub"
	"safeguard-bot/internal/recorder"
	"safeguard-bot/internal/solana"
	"safeguard-bot/internal/storage/memory"
)

const (
	buyer = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	mint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	vault = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
)

type fixedPrice struct {
	usd decimal.NullDecimal
}

func (f fixedPrice) ResolveUSD(context.Context, domain.Chain, string, decimal.Decimal, string, *decimal.Decimal) decimal.NullDecimal {
	return f.usd
}

type panicClassifier struct{}

func (panicClassifier) Classify(classify.RawEvent, *domain.TrackedToken) (*domain.SwapEvent, error) {
	panic("boom")
}

type harness struct {
	proc      *Processor
	txs       *memory.TransactionStore
	blacklist *memory.BlacklistStore
	sender    *stub.Sender
}

func newHarness(t *testing.T, policy alert.Policy, usd decimal.NullDecimal) *harness {
	t.Helper()
	h := &harness{
		txs:       memory.NewTransactionStore(),
		blacklist: memory.NewBlacklistStore(),
		sender:    stub.NewSender(),
	}
	rec := recorder.New(recorder.Options{Transactions: h.txs, Aggregates: memory.NewAggregateStore()})
	h.proc = NewProcessor(ProcessorOptions{
		Classifier: classify.NewRegistry(classify.NewSolanaClassifier(), classify.NewEVMClassifier()),
		Prices:     fixedPrice{usd: usd},
		Recorder:   rec,
		Gate: alert.NewGate(alert.GateOptions{
			Policy: policy,
			Filter: mev.NewFilter(mev.FilterOptions{Store: h.blacklist}),
		}),
		Dispatcher: alert.NewDispatcher(alert.DispatcherOptions{Sender: h.sender, Marker: rec}),
	})
	return h
}

func solanaToken() *domain.TrackedToken {
	return &domain.TrackedToken{
		ID: 1, Chain: domain.ChainSolana, Address: mint, Symbol: "USDC",
		ChannelID: -1001, MEVFilter: true, Active: true,
	}
}

// swapTx builds a transaction where the fee payer's token balance moves by
// delta raw units (6 decimals) and pays or receives 2.3 SOL.
func swapTx(sig string, delta int64) *classify.SolanaTx {
	pre := int64(5_000_000)
	post := pre + delta
	return &classify.SolanaTx{Tx: &solana.Transaction{
		Slot:      1,
		Signature: sig,
		BlockTime: 1700000000,
		Message:   &solana.TransactionMessage{AccountKeys: []string{buyer, vault}},
		Meta: &solana.TransactionMeta{
			PreBalances:       []uint64{5_000_000_000, 1_000_000_000},
			PostBalances:      []uint64{2_700_000_000, 3_300_000_000},
			PreTokenBalances:  []solana.TokenBalance{{AccountIndex: 1, Mint: mint, Owner: buyer, Amount: decimal.NewFromInt(pre).String(), Decimals: 6}},
			PostTokenBalances: []solana.TokenBalance{{AccountIndex: 1, Mint: mint, Owner: buyer, Amount: decimal.NewFromInt(post).String(), Decimals: 6}},
		},
	}}
}

func TestProcess_BuyIsRecordedAndAlerted(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NewNullDecimal(decimal.NewFromInt(345)))

	res, err := h.proc.Process(context.Background(), solanaToken(), swapTx("sig1", 1_000_000))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Created)
	assert.True(t, res.Decision.Emit)
	assert.Equal(t, alert.OutcomeSent, res.Outcome)
	assert.Equal(t, domain.DirectionBuy, res.Tx.Direction)

	msgs := h.sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(-1001), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "$345.00")

	stored, err := h.txs.GetByHash(context.Background(), domain.ChainSolana, "sig1")
	require.NoError(t, err)
	assert.True(t, stored.AlertSent)
}

func TestProcess_DuplicateIsNotRealerted(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})

	_, err := h.proc.Process(context.Background(), solanaToken(), swapTx("sig1", 1_000_000))
	require.NoError(t, err)

	res, err := h.proc.Process(context.Background(), solanaToken(), swapTx("sig1", 1_000_000))
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Len(t, h.sender.Messages(), 1)
}

func TestProcess_ConcurrentSameEventAlertsOnce(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.proc.Process(context.Background(), solanaToken(), swapTx("race", 1_000_000))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.sender.Messages(), 1)
}

func TestProcess_SellRecordedNotAlerted(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})

	res, err := h.proc.Process(context.Background(), solanaToken(), swapTx("sell1", -1_000_000))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, domain.DirectionSell, res.Tx.Direction)
	assert.Equal(t, alert.OutcomeSkipped, res.Outcome)
	assert.Empty(t, h.sender.Messages())

	ok, err := h.txs.Exists(context.Background(), domain.ChainSolana, "sell1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcess_BlacklistedWalletNotAlerted(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})
	require.NoError(t, h.blacklist.Add(context.Background(), &domain.BlacklistEntry{Chain: domain.ChainSolana, Wallet: buyer}))

	res, err := h.proc.Process(context.Background(), solanaToken(), swapTx("sig1", 1_000_000))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, alert.ReasonBlacklisted, res.Decision.Reason)
	assert.Empty(t, h.sender.Messages())
}

func TestProcess_UnknownUSDMissesUSDThreshold(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})
	token := solanaToken()
	token.MinAmountUSD = decimal.NewFromInt(50)

	res, err := h.proc.Process(context.Background(), token, swapTx("sig1", 1_000_000))
	require.NoError(t, err)
	assert.False(t, res.Tx.USDValue.Valid)
	assert.False(t, res.Decision.Emit)
	assert.Empty(t, h.sender.Messages())
}

func TestProcess_NotSwapIsDiscarded(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})

	res, err := h.proc.Process(context.Background(), solanaToken(), swapTx("noop", 0))
	require.NoError(t, err)
	assert.Nil(t, res)

	ok, _ := h.txs.Exists(context.Background(), domain.ChainSolana, "noop")
	assert.False(t, ok)
}

func TestProcess_RecoversPanics(t *testing.T) {
	p := NewProcessor(ProcessorOptions{Classifier: panicClassifier{}})

	res, err := p.Process(context.Background(), solanaToken(), swapTx("sig", 1))
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "panic")
}

func TestProcess_CanceledContextStillCompletes(t *testing.T) {
	h := newHarness(t, alert.DefaultPolicy(), decimal.NullDecimal{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.proc.Process(ctx, solanaToken(), swapTx("sig1", 1_000_000))
	require.NoError(t, err)
	assert.Equal(t, alert.OutcomeSent, res.Outcome)
}
