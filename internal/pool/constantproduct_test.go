package pool

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

func mustAddr(t *testing.T, h string) types.Address {
	t.Helper()
	a, err := types.AddressFromHex(h)
	if err != nil {
		t.Fatalf("AddressFromHex(%q): %v", h, err)
	}
	return a
}

func TestConstantProductAmountOut(t *testing.T) {
	eth := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")

	s := &ConstantProductState{
		Token0: eth, Token1: usdc,
		Dec0: 18, Dec1: 6,
		Reserve0: uint256.NewInt(50),
		Reserve1: uint256.NewInt(10_000),
		FeeBps:   30,
	}

	res, err := s.AmountOut(uint256.NewInt(10), eth, usdc)
	if err != nil {
		t.Fatalf("AmountOut: %v", err)
	}
	// amtInAfterFee = 10*9970/10000 = 9 (integer division)
	// out = 10000*9/(50+9) = 90000/59 = 1525 (floor)
	if res.AmountOut.Uint64() == 0 {
		t.Fatalf("expected nonzero output")
	}
	if res.AmountOut.Uint64() >= 10_000 {
		t.Fatalf("output %d exceeds reserve1", res.AmountOut.Uint64())
	}
}

func TestConstantProductZeroInput(t *testing.T) {
	eth := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")
	s := &ConstantProductState{
		Token0: eth, Token1: usdc,
		Reserve0: uint256.NewInt(50), Reserve1: uint256.NewInt(10_000),
		FeeBps: 30,
	}
	res, err := s.AmountOut(uint256.NewInt(0), eth, usdc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AmountOut.Uint64() != 0 {
		t.Fatalf("expected zero output for zero input")
	}
}

func TestConstantProductWrongToken(t *testing.T) {
	eth := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")
	other := mustAddr(t, "0x3333333333333333333333333333333333333333")
	s := &ConstantProductState{
		Token0: eth, Token1: usdc,
		Reserve0: uint256.NewInt(50), Reserve1: uint256.NewInt(10_000),
		FeeBps: 30,
	}
	if _, err := s.AmountOut(uint256.NewInt(1), other, usdc); err != ErrTokenNotInPool {
		t.Fatalf("expected ErrTokenNotInPool, got %v", err)
	}
}

func TestConstantProductMonotoneOutput(t *testing.T) {
	eth := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")
	s := &ConstantProductState{
		Token0: eth, Token1: usdc,
		Reserve0: uint256.NewInt(1_000_000),
		Reserve1: uint256.NewInt(200_000_000),
		FeeBps:   30,
	}
	prevOut := uint64(0)
	for _, in := range []uint64{1, 10, 100, 1_000, 10_000} {
		res, err := s.AmountOut(uint256.NewInt(in), eth, usdc)
		if err != nil {
			t.Fatalf("AmountOut(%d): %v", in, err)
		}
		if res.AmountOut.Uint64() < prevOut {
			t.Fatalf("output not monotone at input %d", in)
		}
		prevOut = res.AmountOut.Uint64()
	}
}

func TestConstantProductClone(t *testing.T) {
	eth := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")
	s := &ConstantProductState{
		Token0: eth, Token1: usdc,
		Reserve0: uint256.NewInt(50), Reserve1: uint256.NewInt(10_000),
		FeeBps: 30,
	}
	clone := s.Clone().(*ConstantProductState)
	clone.Reserve0.AddUint64(clone.Reserve0, 1)
	if s.Reserve0.Uint64() == clone.Reserve0.Uint64() {
		t.Fatalf("clone should be independent of original")
	}
}
