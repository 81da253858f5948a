package pool

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// VaultState is (tokens, balances, weights-or-amplification, fee). Balances
// live inside the state object itself (not the catalogue's separate
// per-component balance map) because the invariant solve needs a consistent
// snapshot of every token's balance at once, per spec.md §4.1.
//
// Weighted pools (Balancer-style) and stable pools (Curve-style) share this
// shape; Amplification == 0 selects the weighted-product invariant, a
// positive Amplification selects the StableSwap invariant.
type VaultState struct {
	Tokens        []types.Address
	Decimals      []uint8
	Balances      []*uint256.Int
	Weights       []*big.Rat // weighted pools only, sums to 1
	Amplification *big.Int   // stable pools only; 0 means "weighted"
	FeeBps        uint32
	GasBase       int64
}

var _ State = (*VaultState)(nil)

func (s *VaultState) Protocol() types.Protocol {
	if s.Amplification != nil && s.Amplification.Sign() > 0 {
		return types.ProtocolStableCurve
	}
	return types.ProtocolWeightedVault
}

func (s *VaultState) Fee() *big.Rat { return feeBpsToRat(s.FeeBps) }

func (s *VaultState) indexOf(a types.Address) int {
	for i, t := range s.Tokens {
		if t == a {
			return i
		}
	}
	return -1
}

func (s *VaultState) SpotPrice(base, quote types.Address) (*big.Rat, error) {
	bi, qi := s.indexOf(base), s.indexOf(quote)
	if bi < 0 || qi < 0 || bi == qi {
		return nil, ErrNoPrice
	}
	if s.Balances[bi] == nil || s.Balances[bi].IsZero() {
		return nil, ErrNoPrice
	}
	bBal := new(big.Rat).SetInt(s.Balances[bi].ToBig())
	qBal := new(big.Rat).SetInt(s.Balances[qi].ToBig())

	var price *big.Rat
	if s.isWeighted() {
		// price(base->quote) = (balQuote/weightQuote) / (balBase/weightBase)
		wB, wQ := s.Weights[bi], s.Weights[qi]
		num := new(big.Rat).Quo(qBal, wQ)
		den := new(big.Rat).Quo(bBal, wB)
		if den.Sign() == 0 {
			return nil, ErrNoPrice
		}
		price = new(big.Rat).Quo(num, den)
	} else {
		// Stable pools trade near parity; spot price approximated at the
		// balance ratio, which is exact at the pool's equilibrium point and
		// a close approximation near it for a simulated orderbook's needs.
		if bBal.Sign() == 0 {
			return nil, ErrNoPrice
		}
		price = new(big.Rat).Quo(qBal, bBal)
	}
	return applyDecimalShift(price, int(s.Decimals[bi])-int(s.Decimals[qi])), nil
}

func (s *VaultState) isWeighted() bool {
	return s.Amplification == nil || s.Amplification.Sign() == 0
}

// AmountOut solves the pool's invariant numerically: the weighted-product
// formula in closed form, the StableSwap invariant via a bounded Newton
// iteration, both supplemented from original_source's
// back/src/shd/maths/opti.rs / steps.rs numerical-solve style.
func (s *VaultState) AmountOut(amountIn *uint256.Int, tokenIn, tokenOut types.Address) (Result, error) {
	bi, qi := s.indexOf(tokenIn), s.indexOf(tokenOut)
	if bi < 0 || qi < 0 || bi == qi {
		return Result{}, ErrTokenNotInPool
	}
	if amountIn == nil || amountIn.IsZero() {
		return Result{AmountOut: uint256.NewInt(0), GasUnits: big.NewInt(s.GasBase)}, nil
	}
	balIn, _ := new(big.Float).SetInt(s.Balances[bi].ToBig()).Float64()
	balOut, _ := new(big.Float).SetInt(s.Balances[qi].ToBig()).Float64()
	if balIn <= 0 || balOut <= 0 {
		return Result{}, ErrInsufficientLiquidity
	}
	amtIn, _ := new(big.Float).SetInt(amountIn.ToBig()).Float64()
	feeFrac := 1 - float64(s.FeeBps)/10_000
	amtInAfterFee := amtIn * feeFrac

	var out float64
	if s.isWeighted() {
		wIn, _ := s.Weights[bi].Float64()
		wOut, _ := s.Weights[qi].Float64()
		// out = balOut * (1 - (balIn/(balIn+amtInAfterFee))^(wIn/wOut))
		ratio := balIn / (balIn + amtInAfterFee)
		out = balOut * (1 - math.Pow(ratio, wIn/wOut))
	} else {
		var err error
		out, err = stableSwapOut(balIn, balOut, amtInAfterFee, s.otherBalances(bi, qi), ampFloat(s.Amplification))
		if err != nil {
			return Result{}, err
		}
	}
	if out <= 0 || math.IsNaN(out) || math.IsInf(out, 0) {
		return Result{}, ErrSimulationFailed
	}
	if out >= balOut {
		return Result{}, ErrInsufficientLiquidity
	}
	outBig, _ := big.NewFloat(out).Int(nil)
	outU, overflow := uint256.FromBig(outBig)
	if overflow {
		return Result{}, ErrSimulationFailed
	}
	return Result{AmountOut: outU, GasUnits: big.NewInt(s.GasBase)}, nil
}

func (s *VaultState) otherBalances(exclude ...int) []float64 {
	out := make([]float64, 0, len(s.Balances))
	for i, b := range s.Balances {
		skip := false
		for _, e := range exclude {
			if i == e {
				skip = true
			}
		}
		if skip {
			continue
		}
		f, _ := new(big.Float).SetInt(b.ToBig()).Float64()
		out = append(out, f)
	}
	return out
}

func ampFloat(a *big.Int) float64 {
	if a == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(a).Float64()
	return f
}

// stableSwapOut solves the StableSwap invariant
// A*n^n*sum(x) + D = A*D*n^n + D^(n+1)/(n^n*prod(x))
// for the output balance via a bounded Newton iteration on D and on the new
// output balance, following the standard Curve-style two-stage solve.
func stableSwapOut(balIn, balOut, amtIn float64, others []float64, amp float64) (float64, error) {
	n := float64(2 + len(others))
	sum := balIn + balOut
	prod := balIn * balOut
	for _, o := range others {
		sum += o
		prod *= o
	}
	d := computeD(sum, prod, n, amp)

	newBalIn := balIn + amtIn
	newProd := newBalIn
	for _, o := range others {
		newProd *= o
	}
	newBalOut, err := solveBalance(d, newProd, n, amp, sum-balOut+newBalIn)
	if err != nil {
		return 0, err
	}
	out := balOut - newBalOut
	return out, nil
}

// computeD runs a bounded Newton iteration for the StableSwap invariant
// constant D given the current balance sum/product.
func computeD(sum, prod, n, amp float64) float64 {
	d := sum
	ann := amp * math.Pow(n, n)
	for i := 0; i < 64; i++ {
		dPrev := d
		dp := math.Pow(d, n+1) / (math.Pow(n, n) * prod)
		d = (ann*sum + dp*n) * d / ((ann-1)*d + (n+1)*dp)
		if math.Abs(d-dPrev) < 1e-10 {
			break
		}
	}
	return d
}

// solveBalance inverts the invariant for the unknown output balance given D
// and the sum of all other balances (sumOthers) via bounded Newton iteration.
func solveBalance(d, prodOthers, n, amp, sumOthers float64) (float64, error) {
	ann := amp * math.Pow(n, n)
	c := math.Pow(d, n+1) / (prodOthers * math.Pow(n, n) * ann)
	b := sumOthers + d/ann
	y := d
	for i := 0; i < 64; i++ {
		yPrev := y
		y = (y*y + c) / (2*y + b - d)
		if y <= 0 {
			return 0, ErrSimulationFailed
		}
		if math.Abs(y-yPrev) < 1e-10 {
			break
		}
	}
	return y, nil
}

func (s *VaultState) Clone() State {
	cp := *s
	cp.Tokens = append([]types.Address(nil), s.Tokens...)
	cp.Decimals = append([]uint8(nil), s.Decimals...)
	cp.Balances = make([]*uint256.Int, len(s.Balances))
	for i, b := range s.Balances {
		if b != nil {
			cp.Balances[i] = new(uint256.Int).Set(b)
		}
	}
	cp.Weights = make([]*big.Rat, len(s.Weights))
	for i, w := range s.Weights {
		if w != nil {
			cp.Weights[i] = new(big.Rat).Set(w)
		}
	}
	if s.Amplification != nil {
		cp.Amplification = new(big.Int).Set(s.Amplification)
	}
	return &cp
}
