package domain

import (
	"fmt"
	"strings"
)

// Chain identifies a supported blockchain.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainBase     Chain = "base"

	// ChainAny matches every chain. Only meaningful for blacklist entries.
	ChainAny Chain = "*"
)

// Family groups chains that share a data model.
type Family string

const (
	FamilySolana Family = "solana"
	FamilyEVM    Family = "evm"
)

// EVMChains lists the supported EVM chains in a stable order.
var EVMChains = []Chain{ChainEthereum, ChainBSC, ChainBase}

// String returns the string representation of Chain.
func (c Chain) String() string {
	return string(c)
}

// IsValid checks if the chain is a supported value.
func (c Chain) IsValid() bool {
	switch c {
	case ChainSolana, ChainEthereum, ChainBSC, ChainBase:
		return true
	}
	return false
}

// Family returns the chain family.
func (c Chain) Family() Family {
	if c == ChainSolana {
		return FamilySolana
	}
	return FamilyEVM
}

// NativeSymbol returns the ticker of the chain's native asset.
func (c Chain) NativeSymbol() string {
	switch c {
	case ChainSolana:
		return "SOL"
	case ChainBSC:
		return "BNB"
	default:
		return "ETH"
	}
}

// NativeDecimals returns the base-unit exponent of the native asset.
func (c Chain) NativeDecimals() int32 {
	if c == ChainSolana {
		return 9
	}
	return 18
}

// ParseChain parses a chain identifier, case-insensitively.
func ParseChain(s string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported chain %q", s)
	}
	return c, nil
}

// NormalizeAddress returns the canonical comparison form of an address.
// EVM hex addresses are case-insensitive; Solana base58 addresses are not.
// Wildcard entries keep their casing since they may hold either form.
func NormalizeAddress(c Chain, addr string) string {
	addr = strings.TrimSpace(addr)
	if c == ChainSolana || c == ChainAny {
		return addr
	}
	return strings.ToLower(addr)
}
