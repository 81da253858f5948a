package pool

import (
	"math"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func newRangeBoundState(t *testing.T, liquidity int64) *ConcentratedState {
	t.Helper()
	eth := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")

	sqrtP0 := sqrtPriceAtTick(0)
	sqrtPX96 := new(big.Float).Mul(big.NewFloat(sqrtP0), big.NewFloat(q96Float))
	sqrtPX96Int, _ := sqrtPX96.Int(nil)

	return &ConcentratedState{
		Token0: eth, Token1: usdc,
		Dec0: 18, Dec1: 6,
		Liquidity:    big.NewInt(liquidity),
		SqrtPriceX96: sqrtPX96Int,
		CurrentTick:  0,
		TickSpacing:  60,
		Ticks: []Tick{
			{Index: -200, LiquidityNet: big.NewInt(liquidity)},
			{Index: 200, LiquidityNet: big.NewInt(-liquidity)},
		},
		FeeE6:      3000,
		GasBase:    150_000,
		GasPerTick: 20_000,
	}
}

func TestConcentratedInRangeSmallSwap(t *testing.T) {
	s := newRangeBoundState(t, 1_000_000_000_000)

	res, err := s.AmountOut(uint256.NewInt(1_000_000), s.Token0, s.Token1)
	if err != nil {
		t.Fatalf("AmountOut: %v", err)
	}
	if res.AmountOut.IsZero() {
		t.Fatalf("expected nonzero output for small in-range swap")
	}
	if res.GasUnits.Int64() != s.GasBase {
		t.Fatalf("small in-range swap should not cross ticks: gas = %d, want %d", res.GasUnits.Int64(), s.GasBase)
	}
}

func TestConcentratedCrossesTickOnLargeSwap(t *testing.T) {
	s := newRangeBoundState(t, 1_000_000_000_000)

	// A very large swap should consume the whole [-200,0] range and either
	// cross the tick (if liquidity remains beyond it) or fail with
	// insufficient liquidity — both acceptable per the adapter contract,
	// but it must not panic and must report increased gas when it succeeds.
	amt := new(uint256.Int).Mul(uint256.NewInt(1_000_000), uint256.NewInt(1_000_000))
	res, err := s.AmountOut(amt, s.Token0, s.Token1)
	if err != nil {
		return
	}
	if res.GasUnits.Int64() <= s.GasBase {
		t.Fatalf("expected extra gas from tick crossing, got %d", res.GasUnits.Int64())
	}
}

func TestConcentratedWrongToken(t *testing.T) {
	s := newRangeBoundState(t, 1_000_000_000_000)
	other := mustAddr(t, "0x3333333333333333333333333333333333333333")
	if _, err := s.AmountOut(uint256.NewInt(1), other, s.Token1); err != ErrTokenNotInPool {
		t.Fatalf("expected ErrTokenNotInPool, got %v", err)
	}
}

func TestSqrtPriceAtTickZeroIsOne(t *testing.T) {
	if math.Abs(sqrtPriceAtTick(0)-1.0) > 1e-9 {
		t.Fatalf("sqrt price at tick 0 should be 1, got %f", sqrtPriceAtTick(0))
	}
}
