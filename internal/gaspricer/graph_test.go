package gaspricer

import (
	"context"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/pool"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

func mustAddr(t *testing.T, hex string) types.Address {
	t.Helper()
	a, err := types.AddressFromHex(hex)
	if err != nil {
		t.Fatalf("AddressFromHex(%q): %v", hex, err)
	}
	return a
}

// ratioPool builds a two-token constant-product-shaped state whose spot
// price from a to b is exactly rate, by setting reserves rate:1 (both 18
// decimals so no decimal-shift correction applies).
func ratioPool(t *testing.T, a, b types.Address, rate *big.Rat) pool.State {
	t.Helper()
	// spot_price(base=a, quote=b) = reserve(b)/reserve(a); pick
	// reserve(a)=rate.Denom(), reserve(b)=rate.Num() so the ratio is exact.
	return &pool.ConstantProductState{
		Token0: a, Token1: b, Dec0: 18, Dec1: 18,
		Reserve0: uint256.MustFromBig(rate.Denom()),
		Reserve1: uint256.MustFromBig(rate.Num()),
		FeeBps:   0,
	}
}

// TestPathSearchAndQuoteThreeHop drives end-to-end scenario 3: WBTC/USDC
// (rate 20000), USDC/USDT (rate 1), USDT/WETH (rate 0.0003); path(WBTC ->
// WETH) = [WBTC, USDC, USDT, WETH], quote = 6.0.
func TestPathSearchAndQuoteThreeHop(t *testing.T) {
	wbtc := mustAddr(t, "0x1111111111111111111111111111111111111111")
	usdc := mustAddr(t, "0x2222222222222222222222222222222222222222")
	usdt := mustAddr(t, "0x3333333333333333333333333333333333333333")
	weth := mustAddr(t, "0x4444444444444444444444444444444444444444")

	compWbtcUsdc := types.Component{ID: "wbtc-usdc", Tokens: []types.Address{wbtc, usdc}, Protocol: types.ProtocolConstantProductV2}
	compUsdcUsdt := types.Component{ID: "usdc-usdt", Tokens: []types.Address{usdc, usdt}, Protocol: types.ProtocolConstantProductV2}
	compUsdtWeth := types.Component{ID: "usdt-weth", Tokens: []types.Address{usdt, weth}, Protocol: types.ProtocolConstantProductV2}

	store := catalogue.New(log.StandardLogger())
	store.ApplySnapshot(1,
		map[types.ComponentID]types.Component{
			"wbtc-usdc": compWbtcUsdc,
			"usdc-usdt": compUsdcUsdt,
			"usdt-weth": compUsdtWeth,
		},
		map[types.ComponentID]catalogue.StateBlob{
			"wbtc-usdc": {State: ratioPool(t, wbtc, usdc, big.NewRat(20000, 1))},
			"usdc-usdt": {State: ratioPool(t, usdc, usdt, big.NewRat(1, 1))},
			"usdt-weth": {State: ratioPool(t, usdt, weth, big.NewRat(3, 10000))},
		},
	)

	g := BuildGraph(store)
	path, ok := g.PathTo(wbtc, weth)
	if !ok {
		t.Fatalf("expected a path from WBTC to WETH")
	}
	wantTokens := []types.Address{wbtc, usdc, usdt, weth}
	if len(path.Tokens) != len(wantTokens) {
		t.Fatalf("expected path length %d, got %d (%v)", len(wantTokens), len(path.Tokens), path.Tokens)
	}
	for i, tok := range wantTokens {
		if path.Tokens[i] != tok {
			t.Fatalf("path.Tokens[%d] = %s, want %s", i, path.Tokens[i].Hex(), tok.Hex())
		}
	}

	q, err := Quote(g, path)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	got, _ := q.Float64()
	if got < 5.999 || got > 6.001 {
		t.Fatalf("expected quote ~6.0, got %v", got)
	}
}

func TestQuoteSameTokenIsOne(t *testing.T) {
	weth := mustAddr(t, "0x4444444444444444444444444444444444444444")
	path := Path{Tokens: []types.Address{weth}}
	q, err := Quote(&Graph{adj: make(map[types.Address][]Edge)}, path)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("expected 1, got %v", q)
	}
}

func TestQuoteUndefinedForEmptyPath(t *testing.T) {
	g := &Graph{adj: make(map[types.Address][]Edge)}
	_, err := Quote(g, Path{})
	if err != ErrUndefinedQuote {
		t.Fatalf("expected ErrUndefinedQuote, got %v", err)
	}
}

func TestPathSearchNoRoute(t *testing.T) {
	a := mustAddr(t, "0x1111111111111111111111111111111111111111")
	b := mustAddr(t, "0x2222222222222222222222222222222222222222")
	unreachable := mustAddr(t, "0x9999999999999999999999999999999999999999")

	comp := types.Component{ID: "a-b", Tokens: []types.Address{a, b}, Protocol: types.ProtocolConstantProductV2}
	store := catalogue.New(log.StandardLogger())
	store.ApplySnapshot(1,
		map[types.ComponentID]types.Component{"a-b": comp},
		map[types.ComponentID]catalogue.StateBlob{"a-b": {State: ratioPool(t, a, b, big.NewRat(1, 1))}},
	)
	g := BuildGraph(store)
	if _, ok := g.PathTo(a, unreachable); ok {
		t.Fatalf("expected no path to an unreachable token")
	}
}

func TestPricerETHPerUnitBestEffortOnMissingSources(t *testing.T) {
	wbtc := mustAddr(t, "0x1111111111111111111111111111111111111111")
	weth := mustAddr(t, "0x4444444444444444444444444444444444444444")
	comp := types.Component{ID: "wbtc-weth", Tokens: []types.Address{wbtc, weth}, Protocol: types.ProtocolConstantProductV2}

	store := catalogue.New(log.StandardLogger())
	store.ApplySnapshot(1,
		map[types.ComponentID]types.Component{"wbtc-weth": comp},
		map[types.ComponentID]catalogue.StateBlob{"wbtc-weth": {State: ratioPool(t, wbtc, weth, big.NewRat(15, 1))}},
	)

	p := New(store, weth, nil, nil, log.StandardLogger())
	rate, ok := p.ETHPerUnit(wbtc)
	if !ok {
		t.Fatalf("expected a rate")
	}
	if f, _ := rate.Float64(); f != 15 {
		t.Fatalf("expected 15, got %v", f)
	}

	if cost := p.GasCostUSD(context.Background(), big.NewInt(21000)); cost.Sign() != 0 {
		t.Fatalf("expected zero gas cost with no sources configured, got %v", cost)
	}
}
