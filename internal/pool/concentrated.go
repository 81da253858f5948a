package pool

import (
	"math"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// Tick is one entry of a concentrated pool's sorted tick map: the net
// liquidity delta applied when price crosses this boundary upward (negated
// when crossing downward), per spec.md §4.1 / Design Notes §9.
type Tick struct {
	Index        int32
	LiquidityNet *big.Int // signed
}

// ConcentratedState is (liquidity, sqrt_price_q96, current_tick,
// tick_spacing, sorted_tick_map), grounded on the teacher's pool-state shape
// generalized to Uniswap-v3-style concentrated liquidity and supplemented
// from original_source's back/src/shd/maths/ticks.rs tick-walking semantics.
type ConcentratedState struct {
	Token0, Token1 types.Address
	Dec0, Dec1     uint8

	Liquidity    *big.Int // current in-range liquidity
	SqrtPriceX96 *big.Int // Q96 fixed point, current price
	CurrentTick  int32
	TickSpacing  int32
	Ticks        []Tick // sorted ascending by Index

	FeeE6 uint32 // parts-per-1e6 fee encoding on the wire

	// HookAddress is non-zero for hooked (v4) pools. The simulation does
	// not read it.
	HookAddress types.Address

	// GasBase/GasPerTick price cumulative gas as the walk crosses ticks.
	GasBase    int64
	GasPerTick int64
}

var _ State = (*ConcentratedState)(nil)

const q96Float = 1 << 96

func (s *ConcentratedState) Protocol() types.Protocol {
	if !s.HookAddress.IsZero() {
		return types.ProtocolConcentratedV4
	}
	return types.ProtocolConcentratedV3
}

func (s *ConcentratedState) Fee() *big.Rat {
	return new(big.Rat).SetFrac(big.NewInt(int64(s.FeeE6)), big.NewInt(1_000_000))
}

func (s *ConcentratedState) sqrtPriceFloat() float64 {
	x := new(big.Float).SetInt(s.SqrtPriceX96)
	x.Quo(x, big.NewFloat(q96Float))
	f, _ := x.Float64()
	return f
}

// sqrtPriceAtTick returns sqrt(1.0001^tick), the standard tick-to-price
// relationship used to derive a range boundary's price.
func sqrtPriceAtTick(tick int32) float64 {
	return math.Pow(1.0001, float64(tick)/2)
}

func (s *ConcentratedState) SpotPrice(base, quote types.Address) (*big.Rat, error) {
	var decBase, decQuote uint8
	var invert bool
	switch {
	case base == s.Token0 && quote == s.Token1:
		decBase, decQuote, invert = s.Dec0, s.Dec1, false
	case base == s.Token1 && quote == s.Token0:
		decBase, decQuote, invert = s.Dec1, s.Dec0, true
	default:
		return nil, ErrNoPrice
	}
	sp := s.sqrtPriceFloat()
	price := sp * sp // token1 per token0, before decimal adjustment
	if invert {
		if price == 0 {
			return nil, ErrNoPrice
		}
		price = 1 / price
	}
	r := new(big.Rat).SetFloat64(price)
	if r == nil {
		return nil, ErrNoPrice
	}
	return applyDecimalShift(r, int(decBase)-int(decQuote)), nil
}

// AmountOut walks ticks in the swap direction, accumulating input/output
// across active ranges and crossing ticks (updating liquidity by each
// tick's net delta) until the input is exhausted or liquidity runs out.
func (s *ConcentratedState) AmountOut(amountIn *uint256.Int, tokenIn, tokenOut types.Address) (Result, error) {
	zeroForOne := tokenIn == s.Token0 && tokenOut == s.Token1
	oneForZero := tokenIn == s.Token1 && tokenOut == s.Token0
	if !zeroForOne && !oneForZero {
		return Result{}, ErrTokenNotInPool
	}
	if amountIn == nil || amountIn.IsZero() {
		return Result{AmountOut: uint256.NewInt(0), GasUnits: big.NewInt(s.GasBase)}, nil
	}
	if s.Liquidity == nil || s.Liquidity.Sign() <= 0 {
		return Result{}, ErrInsufficientLiquidity
	}

	ticks := make([]Tick, len(s.Ticks))
	copy(ticks, s.Ticks)
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Index < ticks[j].Index })

	feeFrac := 1 - float64(s.FeeE6)/1_000_000
	remaining := new(big.Float).SetInt(amountIn.ToBig())
	liquidity := new(big.Float).SetInt(s.Liquidity)
	sqrtP := s.sqrtPriceFloat()
	outputTotal := new(big.Float)
	crossed := 0

	idx := nextTickIndex(ticks, s.CurrentTick, zeroForOne)

	for {
		remFloat, _ := remaining.Float64()
		if remFloat <= 0 {
			break
		}
		var boundaryTick int32
		var haveBoundary bool
		if zeroForOne {
			if idx >= 0 {
				boundaryTick = ticks[idx].Index
				haveBoundary = true
			}
		} else {
			if idx < len(ticks) {
				boundaryTick = ticks[idx].Index
				haveBoundary = true
			}
		}
		if !haveBoundary {
			// Out of initialized ticks in this direction: liquidity is
			// assumed to vanish beyond the last observed range.
			return Result{}, ErrInsufficientLiquidity
		}

		sqrtPNext := sqrtPriceAtTick(boundaryTick)
		liqF, _ := liquidity.Float64()
		if liqF <= 0 {
			return Result{}, ErrInsufficientLiquidity
		}

		var deltaInMax, deltaOutRange float64
		if zeroForOne {
			// price decreasing: token0 in, token1 out
			deltaInMax = liqF * (1/sqrtPNext - 1/sqrtP)
			deltaOutRange = liqF * (sqrtP - sqrtPNext)
		} else {
			deltaInMax = liqF * (1/sqrtP - 1/sqrtPNext)
			deltaOutRange = liqF * (sqrtPNext - sqrtP)
		}
		if deltaInMax < 0 {
			deltaInMax = 0
		}
		amtInAfterFee := remFloat * feeFrac
		grossNeeded := deltaInMax / feeFrac

		if amtInAfterFee >= deltaInMax && deltaInMax > 0 {
			// Consume the whole range, cross the tick.
			outputTotal.Add(outputTotal, big.NewFloat(deltaOutRange))
			remaining.Sub(remaining, big.NewFloat(grossNeeded))
			sqrtP = sqrtPNext
			netDelta := new(big.Float).SetInt(ticks[idx].LiquidityNet)
			if zeroForOne {
				liquidity.Sub(liquidity, netDelta)
				idx--
			} else {
				liquidity.Add(liquidity, netDelta)
				idx++
			}
			crossed++
			continue
		}

		// Partial fill within the current range using the closed-form
		// single-range swap formula.
		var sqrtPPartial float64
		if zeroForOne {
			sqrtPPartial = 1 / (1/sqrtP + amtInAfterFee/liqF)
		} else {
			sqrtPPartial = sqrtP + amtInAfterFee/liqF
		}
		var deltaOutPartial float64
		if zeroForOne {
			deltaOutPartial = liqF * (sqrtP - sqrtPPartial)
		} else {
			deltaOutPartial = liqF * (sqrtPPartial - sqrtP)
		}
		outputTotal.Add(outputTotal, big.NewFloat(deltaOutPartial))
		remaining.SetFloat64(0)
		break
	}

	outBig, _ := outputTotal.Int(nil)
	if outBig == nil || outBig.Sign() < 0 {
		return Result{}, ErrSimulationFailed
	}
	outU, overflow := uint256.FromBig(outBig)
	if overflow {
		return Result{}, ErrSimulationFailed
	}
	gas := s.GasBase + int64(crossed)*s.GasPerTick
	return Result{AmountOut: outU, GasUnits: big.NewInt(gas)}, nil
}

// nextTickIndex returns the slice index of the next tick in the swap
// direction: the highest tick at or below current when moving down
// (zeroForOne), the lowest tick strictly above current when moving up, or
// -1/len(ticks) if none.
func nextTickIndex(ticks []Tick, current int32, zeroForOne bool) int {
	if zeroForOne {
		for i := len(ticks) - 1; i >= 0; i-- {
			if ticks[i].Index <= current {
				return i
			}
		}
		return -1
	}
	for i := 0; i < len(ticks); i++ {
		if ticks[i].Index > current {
			return i
		}
	}
	return len(ticks)
}

func (s *ConcentratedState) Clone() State {
	cp := *s
	if s.Liquidity != nil {
		cp.Liquidity = new(big.Int).Set(s.Liquidity)
	}
	if s.SqrtPriceX96 != nil {
		cp.SqrtPriceX96 = new(big.Int).Set(s.SqrtPriceX96)
	}
	cp.Ticks = make([]Tick, len(s.Ticks))
	for i, t := range s.Ticks {
		nt := Tick{Index: t.Index}
		if t.LiquidityNet != nil {
			nt.LiquidityNet = new(big.Int).Set(t.LiquidityNet)
		}
		cp.Ticks[i] = nt
	}
	return &cp
}

// HookFilter is an allow-list predicate over the hook address of a hooked
// concentrated-v4 pool. Nothing in this module calls one: the catalogue's
// ingest paths do not filter hooked pools, so every hooked pool is kept.
type HookFilter func(hook types.Address) bool

// AllowAllHooks is the permissive default filter.
func AllowAllHooks(types.Address) bool { return true }
