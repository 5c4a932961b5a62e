package solana

import "context"

// RPCClient defines the Solana JSON-RPC calls used by the swap poller.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns nil, nil if the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves recent signatures referencing an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	PreBalances       []uint64 // lamports, indexed like AllAccountKeys
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LoadedAddresses   LoadedAddresses
	LogMessages       []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// LoadedAddresses are accounts pulled in from address lookup tables.
type LoadedAddresses struct {
	Writable []string
	Readonly []string
}

// TokenBalance is one SPL token account balance snapshot.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // raw base units
	Decimals     uint8
}

// Failed reports whether the transaction executed with an error.
func (tx *Transaction) Failed() bool {
	return tx.Meta != nil && tx.Meta.Err != nil
}

// FeePayer returns the first account key, or "" if unknown.
func (tx *Transaction) FeePayer() string {
	if tx.Message == nil || len(tx.Message.AccountKeys) == 0 {
		return ""
	}
	return tx.Message.AccountKeys[0]
}

// AllAccountKeys returns static keys followed by lookup-table keys,
// matching the index space of balances and token balances.
func (tx *Transaction) AllAccountKeys() []string {
	var keys []string
	if tx.Message != nil {
		keys = append(keys, tx.Message.AccountKeys...)
	}
	if tx.Meta != nil {
		keys = append(keys, tx.Meta.LoadedAddresses.Writable...)
		keys = append(keys, tx.Meta.LoadedAddresses.Readonly...)
	}
	return keys
}
