// Package query serializes catalogue slices and orderbook results for
// external consumers. Intentionally thin per spec.md's explicit
// out-of-scope note for the transport surface — it exists so the HTTP
// adapter in cmd/server has a concrete home for chi, not as a
// fully-specified API.
package query

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/orderbook"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// StatusView is the status query's response shape: `state` is one of
// down/launching/syncing/running/error (spec.md §6).
type StatusView struct {
	State                 string   `json:"state"`
	Ready                 bool     `json:"ready"`
	LatestBlock           uint64   `json:"latest_block"`
	LastUpdatedComponents []string `json:"last_updated_components"`
}

// Status reads a point-in-time status view from store.
func Status(store *catalogue.Store) StatusView {
	ids := store.LastUpdatedComponents()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return StatusView{
		State:                 string(store.LifecycleState()),
		Ready:                 store.Ready(),
		LatestBlock:           store.LatestBlock(),
		LastUpdatedComponents: out,
	}
}

// TokenView is the wire shape for one token descriptor.
type TokenView struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// Tokens serializes every token the catalogue has observed.
func Tokens(store *catalogue.Store) []TokenView {
	toks := store.Tokens()
	out := make([]TokenView, len(toks))
	for i, t := range toks {
		out[i] = TokenView{Address: t.Address.Hex(), Decimals: t.Decimals, Symbol: t.Symbol}
	}
	return out
}

// ComponentView is the wire shape for one component descriptor.
type ComponentView struct {
	ID        string   `json:"id"`
	Tokens    []string `json:"tokens"`
	Protocol  string   `json:"protocol"`
	CreatedTx string   `json:"created_tx"`
}

// Components serializes every currently-live component descriptor.
func Components(store *catalogue.Store) []ComponentView {
	comps := store.Components()
	out := make([]ComponentView, len(comps))
	for i, c := range comps {
		toks := make([]string, len(c.Tokens))
		for j, addr := range c.Tokens {
			toks[j] = addr.Hex()
		}
		out[i] = ComponentView{ID: string(c.ID), Tokens: toks, Protocol: c.Protocol.String(), CreatedTx: c.CreatedTx}
	}
	return out
}

// TradePointView is the wire shape for one evaluated grid point.
type TradePointView struct {
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Ratio     string `json:"ratio"`
}

// MidSummaryView is the wire shape for a pair's mid-price summary.
type MidSummaryView struct {
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Mid       string `json:"mid"`
	Spread    string `json:"spread"`
	SpreadPct string `json:"spread_pct"`
}

// OrderbookView is the wire shape for a full pair bundle.
type OrderbookView struct {
	Token0    TokenView        `json:"token0"`
	Token1    TokenView        `json:"token1"`
	ZeroToOne []TradePointView `json:"zero_to_one"`
	OneToZero []TradePointView `json:"one_to_zero"`
	Mid       MidSummaryView   `json:"mid"`
	ETHUSD    string           `json:"eth_usd"`
}

// Orderbook serializes a Bundle into its wire shape.
func Orderbook(b orderbook.Bundle) OrderbookView {
	return OrderbookView{
		Token0:    tokenView(b.Token0),
		Token1:    tokenView(b.Token1),
		ZeroToOne: tradePoints(b.ZeroToOne),
		OneToZero: tradePoints(b.OneToZero),
		Mid:       midView(b.Mid),
		ETHUSD:    ratString(b.ETHUSD),
	}
}

func tokenView(t types.Token) TokenView {
	return TokenView{Address: t.Address.Hex(), Decimals: t.Decimals, Symbol: t.Symbol}
}

func tradePoints(points []orderbook.TradePoint) []TradePointView {
	out := make([]TradePointView, len(points))
	for i, p := range points {
		out[i] = TradePointView{
			AmountIn:  p.AmountIn.Dec(),
			AmountOut: p.AmountOut.Dec(),
			Ratio:     ratString(p.Ratio),
		}
	}
	return out
}

func midView(m orderbook.MidSummary) MidSummaryView {
	return MidSummaryView{
		BestBid:   ratString(m.BestBid),
		BestAsk:   ratString(m.BestAsk),
		Mid:       ratString(m.Mid),
		Spread:    ratString(m.Spread),
		SpreadPct: ratString(m.SpreadPct),
	}
}

// ratString renders a rational as a decimal string for wire consumption.
// Conversion goes through shopspring/decimal rather than big.Rat's own
// FloatString so presentation-layer rounding (half-away-from-zero at a
// fixed scale) is centralized in one library instead of hand-rolled at
// every call site.
func ratString(r *big.Rat) string {
	if r == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(r.Num(), 0).DivRound(decimal.NewFromBigInt(r.Denom(), 0), 8)
	return d.String()
}
