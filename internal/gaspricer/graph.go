// Package gaspricer converts an amount of an arbitrary token into its ETH
// equivalent by walking a directed graph of spot-price edges built on
// demand from a catalogue snapshot.
//
// Grounded on the original implementation's BFS path search
// (original_source back/src/shd/maths/path.rs: breadth-first walk over a
// token adjacency list, cycle-avoidance via a visited-path set) and the
// teacher's graph-free swap-quote style generalized into an explicit
// adjacency map, since no pack repo implements multi-hop routing directly.
package gaspricer

import (
	"math/big"

	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// Edge is one directed hop in the token graph: trade tokenFrom->tokenTo
// through component, at the component's current spot price.
type Edge struct {
	To        types.Address
	Component types.ComponentID
	Price     *big.Rat // quote-per-base, i.e. units of To per unit of tokenFrom
}

// Graph is an adjacency list keyed by source token address. Rebuilt fresh
// per query from a catalogue snapshot (Design Notes: cyclic adjacency-map
// graph rebuilt per query, never cached across blocks).
type Graph struct {
	adj map[types.Address][]Edge
}

// BuildGraph constructs the token graph from every live component in store:
// for every component with token set T, for every ordered pair (ti, tj),
// i != j, an edge ti -> tj labelled with the component's current
// spot_price(ti, tj). Edges whose spot price errors (ErrNoPrice) are
// omitted.
func BuildGraph(store *catalogue.Store) *Graph {
	components, states, _ := store.Snapshot()
	g := &Graph{adj: make(map[types.Address][]Edge)}
	for id, comp := range components {
		st, ok := states[id]
		if !ok {
			continue
		}
		for i, ti := range comp.Tokens {
			for j, tj := range comp.Tokens {
				if i == j {
					continue
				}
				price, err := st.SpotPrice(ti, tj)
				if err != nil {
					continue
				}
				g.adj[ti] = append(g.adj[ti], Edge{To: tj, Component: id, Price: price})
			}
		}
	}
	return g
}

// Path is a cycle-free walk: Tokens has one more entry than Components.
type Path struct {
	Tokens     []types.Address
	Components []types.ComponentID
}

// Len reports the number of hops (edges) in the path.
func (p Path) Len() int { return len(p.Components) }

// PathTo performs a breadth-first search from source to target, returning
// the shortest (fewest-hop) cycle-free walk. Ties among equal-length paths
// are broken by the adjacency map's iteration order for that call, which is
// arbitrary but fixed for the call's lifetime — deterministic per call, not
// across calls, matching spec intent ("ties broken arbitrarily but
// deterministically per call").
func (g *Graph) PathTo(source, target types.Address) (Path, bool) {
	if source == target {
		return Path{Tokens: []types.Address{source}}, true
	}

	type frame struct {
		tokens     []types.Address
		components []types.ComponentID
	}
	start := frame{tokens: []types.Address{source}}
	queue := []frame{start}
	visitedStart := map[types.Address]struct{}{source: {}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		last := cur.tokens[len(cur.tokens)-1]

		for _, e := range g.adj[last] {
			if containsAddr(cur.tokens, e.To) {
				continue // cycle-free within this path
			}
			nextTokens := append(append([]types.Address{}, cur.tokens...), e.To)
			nextComponents := append(append([]types.ComponentID{}, cur.components...), e.Component)
			if e.To == target {
				return Path{Tokens: nextTokens, Components: nextComponents}, true
			}
			if _, seen := visitedStart[e.To]; seen {
				// Already reached via an equal-or-shorter path from the
				// root; BFS guarantees the first discovery is shortest.
				continue
			}
			visitedStart[e.To] = struct{}{}
			queue = append(queue, frame{tokens: nextTokens, components: nextComponents})
		}
	}
	return Path{}, false
}

func containsAddr(list []types.Address, a types.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

// Quote multiplies the spot price along every edge of path. A length-1 path
// (source == target already) quotes 1. A path with no tokens is undefined
// and returns ErrUndefinedQuote.
func Quote(g *Graph, path Path) (*big.Rat, error) {
	if len(path.Tokens) < 1 {
		return nil, ErrUndefinedQuote
	}
	if len(path.Tokens) == 1 {
		return big.NewRat(1, 1), nil
	}
	result := big.NewRat(1, 1)
	cur := path.Tokens[0]
	for i, compID := range path.Components {
		next := path.Tokens[i+1]
		price, err := quoteEdge(g, cur, next, compID)
		if err != nil {
			return nil, err
		}
		result.Mul(result, price)
		cur = next
	}
	return result, nil
}

func quoteEdge(g *Graph, from, to types.Address, compID types.ComponentID) (*big.Rat, error) {
	for _, e := range g.adj[from] {
		if e.To == to && e.Component == compID {
			return e.Price, nil
		}
	}
	return nil, ErrEdgeNotFound
}
