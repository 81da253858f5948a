package pool

import "errors"

// Structured simulation errors. Adapters never panic; every failure mode
// surfaces as one of these so callers (allocator, gas pricer) can treat it as
// zero output / no conversion edge without inspecting adapter internals.
var (
	// ErrNoPrice is returned by SpotPrice when no conversion edge exists
	// between the requested tokens (e.g. neither token belongs to the pool).
	ErrNoPrice = errors.New("pool: no price for token pair")

	// ErrInsufficientLiquidity is returned by AmountOut when the requested
	// input exceeds what the pool can absorb (e.g. it would drain a
	// reserve, or a concentrated pool runs out of initialized ticks).
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")

	// ErrSimulationFailed covers numerical failures inside an adapter (a
	// vault invariant solve that doesn't converge, a malformed tick map).
	ErrSimulationFailed = errors.New("pool: simulation failed")

	// ErrTokenNotInPool is returned when tokenIn/tokenOut does not belong
	// to the pool's token list.
	ErrTokenNotInPool = errors.New("pool: token not in pool")
)
