// Package allocator splits a raw input amount across a set of pool
// adapters to maximize aggregate net output, using the fixed-iteration
// marginal-rebalancing algorithm of spec.md §4.5.
//
// Grounded on original_source back/src/shd/maths/opti.rs (MAX_ITERS=50,
// epsilon = amount/10_000, 1/10 rebalancing step, 5% prune-and-redistribute)
// and the teacher's concave-optimization-free, loop-bounded numeric style
// (core/liquidity_pools.go's Quote/SwapExactIn): exact integer arithmetic
// for amounts via uint256, float64 only for the marginal comparison, as the
// spec's own rationale calls for.
package allocator

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/pool"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

const (
	// MaxIters bounds the marginal-rebalancing loop.
	MaxIters = 50
	// PruneThresholdBps is 5% expressed in basis points.
	PruneThresholdBps = 500
)

// Candidate is one pool adapter eligible to receive a share of the input
// amount, identified for the caller's bookkeeping by ComponentID.
type Candidate struct {
	ComponentID types.ComponentID
	State       pool.State
	TokenIn     types.Address
	TokenOut    types.Address
}

// PerPool is the finalized per-pool allocation result (spec.md §4.5 point 4).
type PerPool struct {
	ComponentID     types.ComponentID
	Allocation      *uint256.Int
	AmountOut       *uint256.Int
	GasUnits        *big.Int
	GasCostUSD      *big.Rat
	GasCostTokenOut *big.Rat
	DistributionPct *big.Rat // 100 * a_i / A
}

// Result is the allocator's full output for one invocation.
type Result struct {
	TotalAmountIn  *uint256.Int
	TotalAmountOut *uint256.Int
	PerPool        []PerPool
}

// GasPricer is the subset of internal/gaspricer.Pricer the allocator needs
// for finalization's USD and token-out gas denomination; kept as a small
// interface so tests can inject a fake.
type GasPricer interface {
	GasCostUSDForGas(gasUnits *big.Int) *big.Rat
}

// Allocate runs the fixed-iteration marginal-rebalancing algorithm over
// candidates for raw input amount total, denominated in tokenIn's smallest
// unit. ethPerUnitTokenOut is the output token's ETH-worth per whole
// (decimal-adjusted) unit, as gaspricer's ETHPerUnit returns it (0 if
// unknown; gas-in-tokenOut degrades to 0 per spec.md §4.6 point 2). gp may be nil, in which case USD gas costs are reported as zero.
func Allocate(candidates []Candidate, total *uint256.Int, ethPerUnitTokenOut *big.Rat, gp GasPricer) Result {
	n := len(candidates)
	if n == 0 || total == nil || total.IsZero() {
		return Result{TotalAmountIn: uint256.NewInt(0), TotalAmountOut: uint256.NewInt(0)}
	}

	allocs := initialSplit(total, n)
	epsilon := new(uint256.Int).Div(total, uint256.NewInt(10_000))
	if epsilon.IsZero() {
		epsilon = uint256.NewInt(1)
	}

	for iter := 0; iter < MaxIters; iter++ {
		marginals := make([]float64, n)
		for i, c := range candidates {
			marginals[i] = marginalOutput(c, allocs[i], epsilon)
		}
		maxIdx, minIdx := argmax(marginals), argmin(marginals)
		if marginals[maxIdx]-marginals[minIdx] <= 0 {
			break
		}
		move := new(uint256.Int).Div(allocs[minIdx], uint256.NewInt(10))
		if move.IsZero() {
			break
		}
		allocs[minIdx].Sub(allocs[minIdx], move)
		allocs[maxIdx].Add(allocs[maxIdx], move)
	}

	pruneAndRedistribute(allocs, total)

	return finalize(candidates, allocs, total, ethPerUnitTokenOut, gp)
}

func initialSplit(total *uint256.Int, n int) []*uint256.Int {
	base := new(uint256.Int).Div(total, uint256.NewInt(uint64(n)))
	out := make([]*uint256.Int, n)
	remainder := new(uint256.Int).Sub(total, new(uint256.Int).Mul(base, uint256.NewInt(uint64(n))))
	for i := range out {
		out[i] = new(uint256.Int).Set(base)
	}
	// Distribute the integer-division remainder to the first pools so the
	// allocation always sums exactly to total.
	for i := uint64(0); i < remainder.Uint64(); i++ {
		out[i].Add(out[i], uint256.NewInt(1))
	}
	return out
}

// marginalOutput is out(a+eps) - out(a) as a float64, per spec.md §4.5
// step 2a. A pool that fails to evaluate at either point contributes 0.
func marginalOutput(c Candidate, a, epsilon *uint256.Int) float64 {
	base, errBase := c.State.AmountOut(a, c.TokenIn, c.TokenOut)
	if errBase != nil {
		return 0
	}
	shifted := new(uint256.Int).Add(a, epsilon)
	next, errNext := c.State.AmountOut(shifted, c.TokenIn, c.TokenOut)
	if errNext != nil {
		return 0
	}
	baseF := uint256ToFloat(base.AmountOut)
	nextF := uint256ToFloat(next.AmountOut)
	return nextF - baseF
}

func uint256ToFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v.ToBig())
	out, _ := f.Float64()
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func argmin(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x < xs[best] {
			best = i
		}
	}
	return best
}

// pruneAndRedistribute zeroes any allocation below 5% of total and spreads
// the pruned mass across the surviving pools in proportion to their
// current allocation, per spec.md §4.5 step 3.
func pruneAndRedistribute(allocs []*uint256.Int, total *uint256.Int) {
	threshold := new(uint256.Int).Mul(total, uint256.NewInt(PruneThresholdBps))
	threshold.Div(threshold, uint256.NewInt(10_000))

	pruned := uint256.NewInt(0)
	survivorSum := uint256.NewInt(0)
	survivors := make([]int, 0, len(allocs))
	below := make([]int, 0, len(allocs))
	for i, a := range allocs {
		if a.Cmp(threshold) < 0 {
			below = append(below, i)
			pruned.Add(pruned, a)
			continue
		}
		survivors = append(survivors, i)
		survivorSum.Add(survivorSum, a)
	}
	// If every candidate falls below the threshold, there is nothing to
	// redistribute onto: leave the allocations untouched rather than
	// zeroing the whole trade out.
	if pruned.IsZero() || len(survivors) == 0 || survivorSum.IsZero() {
		return
	}
	for _, i := range below {
		allocs[i] = uint256.NewInt(0)
	}

	distributed := uint256.NewInt(0)
	for k, i := range survivors {
		if k == len(survivors)-1 {
			// Last survivor absorbs the rounding remainder so the sum
			// stays exactly total.
			share := new(uint256.Int).Sub(pruned, distributed)
			allocs[i].Add(allocs[i], share)
			continue
		}
		share := new(uint256.Int).Mul(pruned, allocs[i])
		share.Div(share, survivorSum)
		allocs[i].Add(allocs[i], share)
		distributed.Add(distributed, share)
	}
}

func finalize(candidates []Candidate, allocs []*uint256.Int, total *uint256.Int, ethPerUnitTokenOut *big.Rat, gp GasPricer) Result {
	totalOut := uint256.NewInt(0)
	perPool := make([]PerPool, len(candidates))
	for i, c := range candidates {
		res, err := c.State.AmountOut(allocs[i], c.TokenIn, c.TokenOut)
		out := uint256.NewInt(0)
		var gasUnits *big.Int
		if err == nil {
			out = res.AmountOut
			gasUnits = res.GasUnits
		}
		totalOut.Add(totalOut, out)

		gasUSD := big.NewRat(0, 1)
		if gp != nil && gasUnits != nil {
			gasUSD = gp.GasCostUSDForGas(gasUnits)
		}
		gasTokenOut := big.NewRat(0, 1)
		if ethPerUnitTokenOut != nil && ethPerUnitTokenOut.Sign() > 0 && gasUnits != nil {
			gasEth := new(big.Rat).SetInt(gasUnits)
			gasTokenOut = new(big.Rat).Quo(gasEth, ethPerUnitTokenOut)
		}

		dist := big.NewRat(0, 1)
		if !total.IsZero() {
			dist = new(big.Rat).SetFrac(new(big.Int).Mul(allocs[i].ToBig(), big.NewInt(100)), total.ToBig())
		}

		perPool[i] = PerPool{
			ComponentID:     c.ComponentID,
			Allocation:      allocs[i],
			AmountOut:       out,
			GasUnits:        gasUnits,
			GasCostUSD:      gasUSD,
			GasCostTokenOut: gasTokenOut,
			DistributionPct: roundRat2dp(dist),
		}
	}
	return Result{TotalAmountIn: total, TotalAmountOut: totalOut, PerPool: perPool}
}

// roundRat2dp rounds r to two decimal places, returned as an exact rational
// (e.g. 33.33), matching the "rounded to two decimals" distribution-percent
// requirement without introducing float error.
func roundRat2dp(r *big.Rat) *big.Rat {
	scaled := new(big.Rat).Mul(r, big.NewRat(100, 1))
	rounded := new(big.Int)
	rounded.Quo(scaled.Num(), scaled.Denom())
	rem := new(big.Int).Mod(scaled.Num(), scaled.Denom())
	if new(big.Int).Mul(rem, big.NewInt(2)).Cmp(scaled.Denom()) >= 0 {
		rounded.Add(rounded, big.NewInt(1))
	}
	return new(big.Rat).SetFrac(rounded, big.NewInt(100))
}
