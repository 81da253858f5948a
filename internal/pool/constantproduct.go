package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// ConstantProductState is (reserve0, reserve1) plus a flat fee rate,
// grounded on the x*y=k swap in the teacher's AMM.Swap (core/liquidity_pools.go),
// generalized behind the State interface.
type ConstantProductState struct {
	Token0, Token1 types.Address
	Dec0, Dec1     uint8
	Reserve0       *uint256.Int
	Reserve1       *uint256.Int
	FeeBps         uint32 // e.g. 30 == 0.30%
	GasConst       *big.Int
}

var _ State = (*ConstantProductState)(nil)

func (s *ConstantProductState) Protocol() types.Protocol { return types.ProtocolConstantProductV2 }

func (s *ConstantProductState) Fee() *big.Rat { return feeBpsToRat(s.FeeBps) }

// SpotPrice returns (reserve(quote)/reserve(base)) * 10^(dec(base)-dec(quote)),
// i.e. quote per base adjusted for decimals, per spec.md §4.1.
func (s *ConstantProductState) SpotPrice(base, quote types.Address) (*big.Rat, error) {
	var rBase, rQuote *uint256.Int
	var decBase, decQuote uint8
	switch {
	case base == s.Token0 && quote == s.Token1:
		rBase, rQuote, decBase, decQuote = s.Reserve0, s.Reserve1, s.Dec0, s.Dec1
	case base == s.Token1 && quote == s.Token0:
		rBase, rQuote, decBase, decQuote = s.Reserve1, s.Reserve0, s.Dec1, s.Dec0
	default:
		return nil, ErrNoPrice
	}
	if rBase.IsZero() {
		return nil, ErrNoPrice
	}
	price := new(big.Rat).SetFrac(rQuote.ToBig(), rBase.ToBig())
	return applyDecimalShift(price, int(decBase)-int(decQuote)), nil
}

// AmountOut applies (r0 + Δin*(1-f))*(r1 - Δout) = r0*r1.
func (s *ConstantProductState) AmountOut(amountIn *uint256.Int, tokenIn, tokenOut types.Address) (Result, error) {
	var resIn, resOut *uint256.Int
	switch {
	case tokenIn == s.Token0 && tokenOut == s.Token1:
		resIn, resOut = s.Reserve0, s.Reserve1
	case tokenIn == s.Token1 && tokenOut == s.Token0:
		resIn, resOut = s.Reserve1, s.Reserve0
	default:
		return Result{}, ErrTokenNotInPool
	}
	if amountIn == nil || amountIn.IsZero() {
		return Result{AmountOut: uint256.NewInt(0), GasUnits: gasOrDefault(s.GasConst)}, nil
	}
	if resIn.IsZero() || resOut.IsZero() {
		return Result{}, ErrInsufficientLiquidity
	}

	// amountInMinusFee = amountIn * (10000 - feeBps) / 10000, done in big.Int
	// to stay exact regardless of magnitude.
	amtIn := amountIn.ToBig()
	feeMul := new(big.Int).Sub(bps10000, big.NewInt(int64(s.FeeBps)))
	amtInAfterFee := new(big.Int).Mul(amtIn, feeMul)
	amtInAfterFee.Div(amtInAfterFee, bps10000)

	rIn := resIn.ToBig()
	rOut := resOut.ToBig()

	// k = rIn * rOut; amountOut = rOut - k/(rIn+amtInAfterFee) simplifies to
	// amountOut = rOut * amtInAfterFee / (rIn + amtInAfterFee).
	denom := new(big.Int).Add(rIn, amtInAfterFee)
	if denom.Sign() == 0 {
		return Result{}, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(rOut, amtInAfterFee)
	out := new(big.Int).Div(num, denom)
	if out.Cmp(rOut) >= 0 {
		return Result{}, ErrInsufficientLiquidity
	}

	outU, overflow := uint256.FromBig(out)
	if overflow {
		return Result{}, ErrSimulationFailed
	}
	return Result{AmountOut: outU, GasUnits: gasOrDefault(s.GasConst)}, nil
}

func (s *ConstantProductState) Clone() State {
	cp := *s
	cp.Reserve0 = new(uint256.Int).Set(s.Reserve0)
	cp.Reserve1 = new(uint256.Int).Set(s.Reserve1)
	if s.GasConst != nil {
		cp.GasConst = new(big.Int).Set(s.GasConst)
	}
	return &cp
}

func gasOrDefault(g *big.Int) *big.Int {
	if g != nil {
		return new(big.Int).Set(g)
	}
	return big.NewInt(defaultConstantProductGas)
}

// defaultConstantProductGas is the flat per-swap gas estimate used when a
// component carries no explicit gas attribute.
const defaultConstantProductGas = 120_000

func applyDecimalShift(r *big.Rat, shift int) *big.Rat {
	if shift == 0 {
		return r
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(shift))), nil)
	if shift > 0 {
		return new(big.Rat).Mul(r, new(big.Rat).SetInt(pow))
	}
	return new(big.Rat).Quo(r, new(big.Rat).SetInt(pow))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
