package adapter

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard-bot/internal/classify"
	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/evm"
	evmstub "safeguard-bot/internal/evm/stub"
	"safeguard-bot/internal/pipeline"
	"safeguard-bot/internal/solana"
	solstub "safeguard-bot/internal/solana/stub"
	"safeguard-bot/internal/storage/memory"
)

const mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

var (
	pairAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	weth      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tracked   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	trader    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	routerArg = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type processed struct {
	token *domain.TrackedToken
	raw   classify.RawEvent
}

// fakeProcessor records events and doubles as the dedup checker.
type fakeProcessor struct {
	mu     sync.Mutex
	events []processed
	seen   map[string]bool
	notify chan struct{}
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{seen: make(map[string]bool), notify: make(chan struct{}, 64)}
}

func (p *fakeProcessor) Process(_ context.Context, token *domain.TrackedToken, raw classify.RawEvent) (*pipeline.Result, error) {
	p.mu.Lock()
	p.events = append(p.events, processed{token: token, raw: raw})
	if s, ok := raw.(*classify.SolanaTx); ok {
		p.seen[s.Tx.Signature] = true
	}
	p.mu.Unlock()
	p.notify <- struct{}{}
	return &pipeline.Result{}, nil
}

func (p *fakeProcessor) Exists(_ context.Context, _ domain.Chain, hash string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[hash], nil
}

func (p *fakeProcessor) Events() []processed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]processed(nil), p.events...)
}

func (p *fakeProcessor) waitEvents(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.notify:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func newSnapshot(t *testing.T, tokens ...*domain.TrackedToken) (*TokenSnapshot, *memory.TokenStore) {
	t.Helper()
	store := memory.NewTokenStore()
	for _, tok := range tokens {
		require.NoError(t, store.Insert(context.Background(), tok))
	}
	snap := NewTokenSnapshot(SnapshotOptions{Store: store})
	require.NoError(t, snap.Refresh(context.Background()))
	return snap, store
}

func solanaTx(sig string, failed bool) *solana.Transaction {
	tx := &solana.Transaction{
		Signature: sig,
		Slot:      100,
		Meta:      &solana.TransactionMeta{},
		Message:   &solana.TransactionMessage{AccountKeys: []string{"payer"}},
	}
	if failed {
		tx.Meta.Err = map[string]interface{}{"InstructionError": "x"}
	}
	return tx
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, Factor: 2}

	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(5))
	assert.Equal(t, 10*time.Second, b.Delay(50))
}

func TestBackoff_Defaults(t *testing.T) {
	var b Backoff
	assert.Equal(t, DefaultBackoff().Initial, b.Delay(1))
	assert.Equal(t, DefaultBackoff().Max, b.Delay(100))
}

func TestBackoff_ZeroMaxGrows(t *testing.T) {
	b := Backoff{Initial: time.Second}
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, DefaultBackoff().Max, b.Delay(50))
}

func TestBackoffSet(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newBackoffSet(Backoff{Initial: time.Second, Max: time.Minute, Factor: 2})
	s.now = func() time.Time { return now }

	assert.True(t, s.Ready("a"))
	assert.Equal(t, time.Second, s.Fail("a"))
	assert.False(t, s.Ready("a"))
	assert.True(t, s.Ready("b"))

	now = now.Add(time.Second)
	assert.True(t, s.Ready("a"))
	assert.Equal(t, 2*time.Second, s.Fail("a"))

	s.Reset("a")
	assert.True(t, s.Ready("a"))
}

func TestTokenSnapshot_RefreshAndUpdated(t *testing.T) {
	snap, store := newSnapshot(t,
		&domain.TrackedToken{Chain: domain.ChainSolana, Address: mint, ChannelID: 1},
		&domain.TrackedToken{Chain: domain.ChainEthereum, Address: tracked.Hex(), PoolAddress: pairAddr.Hex(), ChannelID: 1},
	)

	assert.Len(t, snap.Chain(domain.ChainSolana), 1)
	assert.Len(t, snap.Family(domain.FamilyEVM), 1)
	assert.Empty(t, snap.Chain(domain.ChainBSC))

	updated := snap.Updated()
	require.NoError(t, snap.Refresh(context.Background()))
	select {
	case <-updated:
		t.Fatal("unchanged refresh must not signal")
	default:
	}

	sol := snap.Chain(domain.ChainSolana)[0]
	require.NoError(t, store.Deactivate(context.Background(), sol.ID))
	require.NoError(t, snap.Refresh(context.Background()))
	select {
	case <-updated:
	default:
		t.Fatal("changed refresh must signal")
	}
	assert.Empty(t, snap.Chain(domain.ChainSolana))
}

func TestTokenSnapshot_RunStopsOnCancel(t *testing.T) {
	snap, _ := newSnapshot(t, &domain.TrackedToken{Chain: domain.ChainSolana, Address: mint, ChannelID: 1})
	snap.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- snap.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestSolanaAdapter_PollOnce(t *testing.T) {
	snap, _ := newSnapshot(t, &domain.TrackedToken{Chain: domain.ChainSolana, Address: mint, ChannelID: 1})
	rpc := solstub.NewRPCClient()
	rpc.AddTransaction(mint, solanaTx("sig-old", false))
	rpc.AddTransaction(mint, solanaTx("sig-failed", true))
	rpc.AddTransaction(mint, solanaTx("sig-new", false))

	proc := newFakeProcessor()
	a := NewSolanaAdapter(SolanaOptions{RPC: rpc, Tokens: snap, Seen: proc, Processor: proc})

	a.PollOnce(context.Background())

	events := proc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "sig-old", events[0].raw.(*classify.SolanaTx).Tx.Signature)
	assert.Equal(t, "sig-new", events[1].raw.(*classify.SolanaTx).Tx.Signature)
	assert.Equal(t, 2, rpc.CallCount("getTransaction"))

	// Recorded signatures are skipped without fetching.
	a.PollOnce(context.Background())
	assert.Len(t, proc.Events(), 2)
	assert.Equal(t, 2, rpc.CallCount("getTransaction"))
}

func TestSolanaAdapter_SkipsBadFetch(t *testing.T) {
	snap, _ := newSnapshot(t, &domain.TrackedToken{Chain: domain.ChainSolana, Address: mint, ChannelID: 1})
	rpc := solstub.NewRPCClient()
	rpc.AddTransaction(mint, solanaTx("sig-a", false))
	rpc.AddTransaction(mint, solanaTx("sig-b", false))
	rpc.SetError("sig-a", errors.New("rpc timeout"))

	proc := newFakeProcessor()
	a := NewSolanaAdapter(SolanaOptions{RPC: rpc, Tokens: snap, Seen: proc, Processor: proc})
	a.PollOnce(context.Background())

	events := proc.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "sig-b", events[0].raw.(*classify.SolanaTx).Tx.Signature)
}

func TestSolanaAdapter_BacksOffAfterSignatureFailure(t *testing.T) {
	snap, _ := newSnapshot(t, &domain.TrackedToken{Chain: domain.ChainSolana, Address: mint, ChannelID: 1})
	rpc := solstub.NewRPCClient()
	rpc.SetError(mint, errors.New("429 too many requests"))

	proc := newFakeProcessor()
	a := NewSolanaAdapter(SolanaOptions{
		RPC: rpc, Tokens: snap, Seen: proc, Processor: proc,
		Backoff: Backoff{Initial: time.Hour, Max: time.Hour, Factor: 2},
	})

	a.PollOnce(context.Background())
	a.PollOnce(context.Background())
	assert.Equal(t, 1, rpc.CallCount("getSignaturesForAddress"))
}

func TestSolanaAdapter_RunStopsOnCancel(t *testing.T) {
	snap, _ := newSnapshot(t, &domain.TrackedToken{Chain: domain.ChainSolana, Address: mint, ChannelID: 1})
	rpc := solstub.NewRPCClient()
	rpc.AddTransaction(mint, solanaTx("sig-1", false))

	proc := newFakeProcessor()
	a := NewSolanaAdapter(SolanaOptions{RPC: rpc, Tokens: snap, Seen: proc, Processor: proc, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	proc.waitEvents(t, 1)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Len(t, proc.Events(), 1)
}

func newEVMFixture(t *testing.T) (*evmstub.Backend, *TokenSnapshot, *fakeProcessor, *EVMAdapter) {
	t.Helper()
	backend := evmstub.NewBackend()
	backend.AddPair(pairAddr, weth, tracked, 18, 9)
	backend.SetBlockTime(42, 1_700_000_000)

	snap, _ := newSnapshot(t, &domain.TrackedToken{
		Chain: domain.ChainEthereum, Address: tracked.Hex(), PoolAddress: pairAddr.Hex(), ChannelID: 1,
	})
	proc := newFakeProcessor()
	a := NewEVMAdapter(EVMOptions{
		Backends:  map[domain.Chain]evm.Backend{domain.ChainEthereum: backend},
		Tokens:    snap,
		Processor: proc,
		Backoff:   Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2},
	})
	return backend, snap, proc, a
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}

func TestEVMAdapter_ProcessesSwapLogs(t *testing.T) {
	backend, _, proc, a := newEVMFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, func() bool { return backend.SubscriptionCount() == 1 })

	lg := evmstub.SwapLog(pairAddr, trader, routerArg,
		big.NewInt(1e18), big.NewInt(0), big.NewInt(0), big.NewInt(5e9),
		common.HexToHash("0xabc"), 42)
	require.Equal(t, 1, backend.Emit(lg))
	proc.waitEvents(t, 1)

	events := proc.Events()
	require.Len(t, events, 1)
	raw, ok := events[0].raw.(*classify.EVMSwap)
	require.True(t, ok)
	assert.Equal(t, domain.ChainEthereum, raw.Chain)
	assert.Equal(t, tracked, raw.Pool.Token1)
	assert.Equal(t, int64(1_700_000_000), raw.Timestamp.Unix())
	assert.Equal(t, 0, raw.Log.Amount1Out.Cmp(big.NewInt(5e9)))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestEVMAdapter_Resubscribes(t *testing.T) {
	backend, _, proc, a := newEVMFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	waitFor(t, func() bool { return backend.SubscriptionCount() == 1 })
	backend.DropSubscriptions(errors.New("connection reset"))
	waitFor(t, func() bool { return backend.SubscriptionCount() == 2 })

	lg := evmstub.SwapLog(pairAddr, trader, routerArg,
		big.NewInt(1e18), big.NewInt(0), big.NewInt(0), big.NewInt(5e9),
		common.HexToHash("0xdef"), 42)
	require.Equal(t, 1, backend.Emit(lg))
	proc.waitEvents(t, 1)
}

func TestEVMAdapter_IgnoresChainsWithoutBackend(t *testing.T) {
	snap, _ := newSnapshot(t, &domain.TrackedToken{
		Chain: domain.ChainBSC, Address: tracked.Hex(), PoolAddress: pairAddr.Hex(), ChannelID: 1,
	})
	a := NewEVMAdapter(EVMOptions{Backends: map[domain.Chain]evm.Backend{}, Tokens: snap, Processor: newFakeProcessor()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Run(ctx), context.DeadlineExceeded)
}
