// Package domain defines core interfaces and types for the nibifeed service
package domain

import (
	"context"
	"maps"
	"slices"
)

// TokenID identifies a token inside the oracle contract
type TokenID uint32

// ExchangeRate is a single record of the chain oracle exchange rate query
type ExchangeRate struct {
	Pair         string `json:"pair"`          // e.g. "ubtc:uusd"
	ExchangeRate string `json:"exchange_rate"` // decimal string, passed through untouched
}

// TokenPrices maps contract token ids to decimal USD price strings
type TokenPrices map[TokenID]string

// IDs returns the token ids in ascending order, which is the submission order
func (tp TokenPrices) IDs() []TokenID {
	return slices.Sorted(maps.Keys(tp))
}

// TxResult is the outcome of a price update included in a block
type TxResult struct {
	Hash      string
	GasUsed   int64
	GasWanted int64
	Height    int64
}

// RateSource defines the interface for services that provide current token prices
type RateSource interface {
	// FetchRates returns the latest price of every known token
	FetchRates(ctx context.Context) (TokenPrices, error)
}

// PriceSubmitter defines the interface for writing a single token price on-chain
type PriceSubmitter interface {
	// UpdatePrice signs and broadcasts a price update and waits for its inclusion
	UpdatePrice(ctx context.Context, id TokenID, price string) (TxResult, error)
}
