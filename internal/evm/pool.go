package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const maxBlockTimes = 4096

// PoolInfo describes a pair's tokens and their decimals.
type PoolInfo struct {
	Address   common.Address
	Token0    common.Address
	Token1    common.Address
	Decimals0 uint8
	Decimals1 uint8
}

// Side reports whether token is token0 (0), token1 (1), or neither (-1).
func (p PoolInfo) Side(token common.Address) int {
	switch token {
	case p.Token0:
		return 0
	case p.Token1:
		return 1
	default:
		return -1
	}
}

// PoolReader reads pool metadata and block timestamps, memoizing both.
type PoolReader struct {
	backend Backend

	mu         sync.RWMutex
	pools      map[common.Address]PoolInfo
	blockTimes map[uint64]time.Time
}

// NewPoolReader creates a reader over backend.
func NewPoolReader(backend Backend) *PoolReader {
	return &PoolReader{
		backend:    backend,
		pools:      make(map[common.Address]PoolInfo),
		blockTimes: make(map[uint64]time.Time),
	}
}

// Pool returns the token pair and decimals for a pool address.
func (r *PoolReader) Pool(ctx context.Context, pool common.Address) (PoolInfo, error) {
	r.mu.RLock()
	info, ok := r.pools[pool]
	r.mu.RUnlock()
	if ok {
		return info, nil
	}

	token0, err := r.callAddress(ctx, pool, "token0")
	if err != nil {
		return PoolInfo{}, err
	}
	token1, err := r.callAddress(ctx, pool, "token1")
	if err != nil {
		return PoolInfo{}, err
	}
	dec0, err := r.decimals(ctx, token0)
	if err != nil {
		return PoolInfo{}, err
	}
	dec1, err := r.decimals(ctx, token1)
	if err != nil {
		return PoolInfo{}, err
	}

	info = PoolInfo{Address: pool, Token0: token0, Token1: token1, Decimals0: dec0, Decimals1: dec1}

	r.mu.Lock()
	r.pools[pool] = info
	r.mu.Unlock()
	return info, nil
}

// BlockTime returns the timestamp of a block.
func (r *PoolReader) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	r.mu.RLock()
	ts, ok := r.blockTimes[number]
	r.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := r.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("header %d: %w", number, err)
	}
	ts = time.Unix(int64(header.Time), 0).UTC()

	r.mu.Lock()
	if len(r.blockTimes) >= maxBlockTimes {
		clear(r.blockTimes)
	}
	r.blockTimes[number] = ts
	r.mu.Unlock()
	return ts, nil
}

func (r *PoolReader) callAddress(ctx context.Context, contract common.Address, method string) (common.Address, error) {
	data, err := pairABI.Pack(method)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}
	out, err := pairABI.Unpack(method, res)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack %s: unexpected %T", method, out[0])
	}
	return addr, nil
}

func (r *PoolReader) decimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	res, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals on %s: %w", token.Hex(), err)
	}
	out, err := erc20ABI.Unpack("decimals", res)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unpack decimals: unexpected %T", out[0])
	}
	return dec, nil
}
