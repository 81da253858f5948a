package orderbook

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"

	log "github.com/sirupsen/logrus"

	"github.com/fberger-xyz/orderbook-wtf/internal/allocator"
	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/gaspricer"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// referenceDivisor is the denominator used both for the grid's start size
// (aggregate_balance / 10_000_000) and the best-bid/ask reference size,
// per spec.md §4.6 points 3-4.
const referenceDivisor = 10_000_000

// Config bounds grid construction, mirroring pkg/config.Config.Orderbook.
type Config struct {
	GridPoints   int
	GridLowMult  float64
	GridHighMult float64
	MinDelta     *uint256.Int // nil disables the filter
}

// Builder ties the catalogue, gas pricer and allocator together to answer
// one pair query.
type Builder struct {
	store  *catalogue.Store
	pricer *gaspricer.Pricer
	cfg    Config
	logger *log.Logger
}

// New builds an orderbook Builder bound to store and pricer.
func New(store *catalogue.Store, pricer *gaspricer.Pricer, cfg Config, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Builder{store: store, pricer: pricer, cfg: cfg, logger: logger}
}

// SinglePointRequest pins a direction and exact input size, skipping grid
// generation (spec.md §4.6 "Single-point mode").
type SinglePointRequest struct {
	ZeroToOne bool
	AmountIn  *uint256.Int
}

// BuildPair computes the full orderbook bundle for (t0, t1). If single is
// non-nil, grid generation is skipped and exactly one allocator call is
// made in the pinned direction.
func (b *Builder) BuildPair(t0, t1 types.Address, single *SinglePointRequest) Bundle {
	components := b.store.ComponentsForPair(t0, t1)
	tok0, _ := b.store.Token(t0)
	tok1, _ := b.store.Token(t1)

	bundle := Bundle{
		Token0:     tok0,
		Token1:     tok1,
		Components: components,
	}

	if len(components) == 0 {
		// O3: empty-pair yields empty trade arrays and no error.
		bundle.Mid = MidSummary{BestBid: big.NewRat(0, 1), BestAsk: big.NewRat(0, 1), Mid: big.NewRat(0, 1), Spread: big.NewRat(0, 1), SpreadPct: big.NewRat(0, 1)}
		return bundle
	}

	agg0 := b.aggregateBalance(components, t0)
	agg1 := b.aggregateBalance(components, t1)
	bundle.LiquidityToken0 = toHumanUnits(agg0, tok0.Decimals)
	bundle.LiquidityToken1 = toHumanUnits(agg1, tok1.Decimals)

	u0, _ := b.pricer.ETHPerUnit(t0)
	u1, _ := b.pricer.ETHPerUnit(t1)
	if u0 == nil {
		u0 = big.NewRat(0, 1)
	}
	if u1 == nil {
		u1 = big.NewRat(0, 1)
	}
	bundle.ETHUSD = b.pricer.ETHUSD(context.Background())

	if single != nil {
		if single.ZeroToOne {
			bundle.ZeroToOne = []TradePoint{b.evaluate(components, t0, t1, single.AmountIn, u1)}
		} else {
			bundle.OneToZero = []TradePoint{b.evaluate(components, t1, t0, single.AmountIn, u0)}
		}
		bundle.Mid = b.midSummary(components, t0, t1, agg0, agg1, u0, u1)
		return bundle
	}

	// start = aggregate_balance / 10_000_000 (the human/10^dec round-trip in
	// spec.md §4.6 point 3 cancels out, leaving the same raw-unit quantity
	// as the best-bid/ask reference size of point 4).
	start0 := new(uint256.Int).Div(agg0, uint256.NewInt(referenceDivisor))
	start1 := new(uint256.Int).Div(agg1, uint256.NewInt(referenceDivisor))
	grid0 := geometricGrid(new(big.Rat).SetInt(start0.ToBig()), b.cfg.GridLowMult, b.cfg.GridHighMult, b.cfg.GridPoints, b.cfg.MinDelta)
	grid1 := geometricGrid(new(big.Rat).SetInt(start1.ToBig()), b.cfg.GridLowMult, b.cfg.GridHighMult, b.cfg.GridPoints, b.cfg.MinDelta)

	for _, amt := range grid0 {
		bundle.ZeroToOne = append(bundle.ZeroToOne, b.evaluate(components, t0, t1, amt, u1))
	}
	for _, amt := range grid1 {
		bundle.OneToZero = append(bundle.OneToZero, b.evaluate(components, t1, t0, amt, u0))
	}

	bundle.Mid = b.midSummary(components, t0, t1, agg0, agg1, u0, u1)
	return bundle
}

func (b *Builder) evaluate(components []types.Component, tokenIn, tokenOut types.Address, amountIn *uint256.Int, ethPerUnitOut *big.Rat) TradePoint {
	candidates := make([]allocator.Candidate, 0, len(components))
	for _, c := range components {
		st, ok := b.store.State(c.ID)
		if !ok {
			continue
		}
		candidates = append(candidates, allocator.Candidate{ComponentID: c.ID, State: st, TokenIn: tokenIn, TokenOut: tokenOut})
	}
	res := allocator.Allocate(candidates, amountIn, ethPerUnitOut, b.pricer)

	var ratio *big.Rat
	if !amountIn.IsZero() {
		ratio = new(big.Rat).SetFrac(res.TotalAmountOut.ToBig(), amountIn.ToBig())
	} else {
		ratio = big.NewRat(0, 1)
	}

	return TradePoint{
		AmountIn:     amountIn,
		AmountOut:    res.TotalAmountOut,
		Ratio:        ratio,
		Distribution: res.PerPool,
	}
}

// midSummary runs the allocator once in each direction at a very small
// reference size (aggregate_balance / 10_000_000) to derive best-bid,
// best-ask, mid and spread, per spec.md §4.6 point 4.
func (b *Builder) midSummary(components []types.Component, t0, t1 types.Address, agg0, agg1 *uint256.Int, u0, u1 *big.Rat) MidSummary {
	ref0 := new(uint256.Int).Div(agg0, uint256.NewInt(referenceDivisor))
	ref1 := new(uint256.Int).Div(agg1, uint256.NewInt(referenceDivisor))

	zeroToOnePoint := b.evaluate(components, t0, t1, ref0, u1)
	oneToZeroPoint := b.evaluate(components, t1, t0, ref1, u0)

	// The 0->1 swap's direct ratio (t1 out per t0 in) is what a seller of
	// t0 receives, so it's the bid. The 1->0 swap's ratio inverted into the
	// same t1-per-t0 units is what a buyer of t0 must pay, so it's the ask.
	bid := zeroToOnePoint.Ratio
	oneToZeroInv := oneToZeroPoint.Ratio
	var ask *big.Rat
	if oneToZeroInv != nil && oneToZeroInv.Sign() != 0 {
		ask = new(big.Rat).Inv(oneToZeroInv)
	} else {
		ask = big.NewRat(0, 1)
	}
	if bid == nil {
		bid = big.NewRat(0, 1)
	}

	mid := new(big.Rat).Add(ask, bid)
	mid.Quo(mid, big.NewRat(2, 1))

	spread := new(big.Rat).Sub(ask, bid)
	spread.Abs(spread)

	spreadPct := big.NewRat(0, 1)
	if mid.Sign() != 0 {
		spreadPct = new(big.Rat).Quo(spread, mid)
	}

	return MidSummary{BestBid: bid, BestAsk: ask, Mid: mid, Spread: spread, SpreadPct: spreadPct}
}

func (b *Builder) aggregateBalance(components []types.Component, token types.Address) *uint256.Int {
	total := uint256.NewInt(0)
	for _, c := range components {
		bal, ok := b.store.Balances(c.ID)
		if !ok {
			continue
		}
		if v, ok := bal[token]; ok && v != nil {
			total.Add(total, v)
		}
	}
	return total
}

func toHumanUnits(raw *uint256.Int, decimals uint8) *big.Rat {
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(raw.ToBig(), pow)
}
