package sources

import (
	"strings"

	"github.com/sljivkov/nibifeed/domain"
)

// tokenIDs binds oracle base denoms to the token ids used by the contract.
// Ids are part of the contract state and must never be renumbered.
var tokenIDs = map[string]domain.TokenID{
	"ubtc":  1,
	"ueth":  2,
	"uatom": 3,
	"uusdc": 4,
	"uusdt": 5,
}

// TokenID returns the contract id of a base denom
func TokenID(base string) (domain.TokenID, bool) {
	id, ok := tokenIDs[base]

	return id, ok
}

// baseSymbol returns the part of a "base:quote" pair before the colon
func baseSymbol(pair string) string {
	base, _, _ := strings.Cut(pair, ":")

	return base
}

// MapRates keeps the rates of known tokens keyed by token id.
// Unknown bases are dropped and a later record overwrites an earlier one.
func MapRates(rates []domain.ExchangeRate) domain.TokenPrices {
	prices := make(domain.TokenPrices, len(tokenIDs))

	for _, rate := range rates {
		id, ok := TokenID(baseSymbol(rate.Pair))
		if !ok {
			continue
		}

		prices[id] = rate.ExchangeRate
	}

	return prices
}
