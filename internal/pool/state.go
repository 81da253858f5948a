// Package pool wraps each AMM family behind a uniform simulation capability:
// spot price, amount-out, fee, and a cheap clone, grounded on the
// constant-product swap math in the teacher repo's core/liquidity_pools.go
// and generalized to concentrated-liquidity and vault families.
package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// Result is the outcome of a successful AmountOut simulation.
type Result struct {
	AmountOut *uint256.Int
	GasUnits  *big.Int
}

// State is the uniform simulation capability every protocol family exposes.
// Concrete implementations are a tagged variant, not a class hierarchy: call
// sites switch on Protocol() rather than type-asserting in hot paths.
type State interface {
	// Protocol identifies the concrete family for logging/metrics.
	Protocol() types.Protocol

	// SpotPrice returns the infinitesimal marginal price of base in terms
	// of quote (quote per base), or ErrNoPrice if no such edge exists in
	// this state.
	SpotPrice(base, quote types.Address) (*big.Rat, error)

	// AmountOut quotes a swap of amountIn of tokenIn for tokenOut. Returns
	// ErrInsufficientLiquidity / ErrSimulationFailed / ErrTokenNotInPool on
	// failure — never panics.
	AmountOut(amountIn *uint256.Int, tokenIn, tokenOut types.Address) (Result, error)

	// Fee returns the pool's fee rate in basis points, as an exact
	// rational (e.g. 30 bps == big.Rat(30, 10000)).
	Fee() *big.Rat

	// Clone returns an independent copy safe to hand to the ingestor for
	// hot-swap or to a reader for lock-free use.
	Clone() State
}

// bps10000 is the uniform fee denominator: fee() always returns a rational
// whose value is (bps / 10_000).
var bps10000 = big.NewInt(10_000)

func feeBpsToRat(bps uint32) *big.Rat {
	return new(big.Rat).SetFrac(big.NewInt(int64(bps)), bps10000)
}
