package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	token0Selector   = crypto.Keccak256([]byte("token0()"))[:4]
	token1Selector   = crypto.Keccak256([]byte("token1()"))[:4]
	decimalsSelector = crypto.Keccak256([]byte("decimals()"))[:4]
	swapTopic        = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
)

// Backend implements evm.Backend in memory.
type Backend struct {
	mu        sync.Mutex
	pairs     map[common.Address][2]common.Address
	decimals  map[common.Address]uint8
	blockTime map[uint64]uint64
	subs      []*Subscription
	calls     int
	SubErr    error // returned by SubscribeFilterLogs when set
}

// NewBackend creates an empty stub backend.
func NewBackend() *Backend {
	return &Backend{
		pairs:     make(map[common.Address][2]common.Address),
		decimals:  make(map[common.Address]uint8),
		blockTime: make(map[uint64]uint64),
	}
}

// AddPair registers a pool with its tokens and their decimals.
func (b *Backend) AddPair(pool, token0, token1 common.Address, dec0, dec1 uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pairs[pool] = [2]common.Address{token0, token1}
	b.decimals[token0] = dec0
	b.decimals[token1] = dec1
}

// SetBlockTime sets the header timestamp returned for a block.
func (b *Backend) SetBlockTime(number, unix uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blockTime[number] = unix
}

// CallCount returns the number of CallContract invocations.
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// CallContract answers token0, token1 and decimals calls.
func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("invalid call")
	}
	sel := msg.Data[:4]
	switch {
	case string(sel) == string(token0Selector), string(sel) == string(token1Selector):
		pair, ok := b.pairs[*msg.To]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		idx := 0
		if string(sel) == string(token1Selector) {
			idx = 1
		}
		return common.LeftPadBytes(pair[idx].Bytes(), 32), nil
	case string(sel) == string(decimalsSelector):
		dec, ok := b.decimals[*msg.To]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return common.LeftPadBytes([]byte{dec}, 32), nil
	default:
		return nil, errors.New("unknown selector")
	}
}

// HeaderByNumber returns a header carrying the configured timestamp.
func (b *Backend) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if number == nil {
		return &types.Header{Number: big.NewInt(0)}, nil
	}
	ts, ok := b.blockTime[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return &types.Header{Number: new(big.Int).Set(number), Time: ts}, nil
}

// FilterLogs returns no historical logs.
func (b *Backend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

// SubscribeFilterLogs registers a live subscription.
func (b *Backend) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SubErr != nil {
		return nil, b.SubErr
	}
	sub := &Subscription{query: q, ch: ch, errCh: make(chan error, 1)}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// SubscriptionCount returns the number of subscriptions ever opened.
func (b *Backend) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Emit delivers lg to every live subscription whose address filter matches.
func (b *Backend) Emit(lg types.Log) int {
	b.mu.Lock()
	subs := append([]*Subscription(nil), b.subs...)
	b.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		if s.deliver(lg) {
			delivered++
		}
	}
	return delivered
}

// DropSubscriptions fails every live subscription with err.
func (b *Backend) DropSubscriptions(err error) {
	b.mu.Lock()
	subs := append([]*Subscription(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fail(err)
	}
}

// Subscription is a stub ethereum.Subscription.
type Subscription struct {
	mu     sync.Mutex
	query  ethereum.FilterQuery
	ch     chan<- types.Log
	errCh  chan error
	closed bool
}

// Err returns the subscription error channel.
func (s *Subscription) Err() <-chan error { return s.errCh }

// Unsubscribe stops delivery.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.errCh)
	}
}

func (s *Subscription) deliver(lg types.Log) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.matches(lg) {
		return false
	}
	s.ch <- lg
	return true
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.errCh <- err
	close(s.errCh)
}

func (s *Subscription) matches(lg types.Log) bool {
	if len(s.query.Addresses) == 0 {
		return true
	}
	for _, a := range s.query.Addresses {
		if a == lg.Address {
			return true
		}
	}
	return false
}

// SwapLog builds a raw pair Swap log.
func SwapLog(pool, sender, to common.Address, amount0In, amount1In, amount0Out, amount1Out *big.Int, txHash common.Hash, block uint64) types.Log {
	uint256, _ := abi.NewType("uint256", "", nil)
	args := abi.Arguments{{Type: uint256}, {Type: uint256}, {Type: uint256}, {Type: uint256}}
	data, err := args.Pack(amount0In, amount1In, amount0Out, amount1Out)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: pool,
		Topics: []common.Hash{
			swapTopic,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        data,
		TxHash:      txHash,
		BlockNumber: block,
	}
}
