// Package orderbook orchestrates pair selection, grid generation, allocator
// invocation and mid-price computation into the output bundle a query
// consumer reads (spec.md §4.6).
package orderbook

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/allocator"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// TradePoint is one evaluated grid size in one direction.
type TradePoint struct {
	AmountIn     *uint256.Int
	AmountOut    *uint256.Int
	Ratio        *big.Rat // AmountOut / AmountIn, in raw smallest-unit terms
	Distribution []allocator.PerPool
}

// MidSummary is the best-bid/best-ask/mid/spread bundle for one pair,
// computed from a very small reference-size allocator run in each
// direction (spec.md §4.6 point 4).
type MidSummary struct {
	BestBid    *big.Rat
	BestAsk    *big.Rat
	Mid        *big.Rat
	Spread     *big.Rat
	SpreadPct  *big.Rat
}

// Bundle is the Orderbook Builder's full output for one pair query.
type Bundle struct {
	Token0, Token1     types.Token
	ZeroToOne          []TradePoint
	OneToZero          []TradePoint
	LiquidityToken0     *big.Rat // aggregate on-chain balance of Token0, human units
	LiquidityToken1     *big.Rat
	Mid                MidSummary
	ETHUSD             *big.Rat
	Components         []types.Component
}
