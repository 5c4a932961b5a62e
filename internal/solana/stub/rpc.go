package stub

import (
	"context"
	"sync"

	"safeguard-bot/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Errors       map[string]error // keyed by signature or address
	Calls        map[string]int   // keyed by method
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Errors:       make(map[string]error),
		Calls:        make(map[string]int),
	}
}

// GetTransaction returns the stored transaction, or nil, nil when absent.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls["getTransaction"]++
	if err := c.Errors[signature]; err != nil {
		return nil, err
	}
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress returns stored signatures for an address.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls["getSignaturesForAddress"]++
	if err := c.Errors[address]; err != nil {
		return nil, err
	}

	sigs := c.Signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// AddTransaction stores a transaction and prepends its signature for address.
func (c *RPCClient) AddTransaction(address string, tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Transactions[tx.Signature] = tx
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot}
	if tx.Meta != nil {
		info.Err = tx.Meta.Err
	}
	c.Signatures[address] = append([]solana.SignatureInfo{info}, c.Signatures[address]...)
}

// SetError makes calls for key (signature or address) fail with err.
func (c *RPCClient) SetError(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors[key] = err
}

// CallCount returns how many times method was invoked.
func (c *RPCClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}
