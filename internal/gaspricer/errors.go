package gaspricer

import "errors"

var (
	// ErrNoPath is returned when no cycle-free walk connects source to
	// target with the catalogue's currently live edges.
	ErrNoPath = errors.New("gaspricer: no path to target")

	// ErrUndefinedQuote is returned by Quote for a path shorter than one
	// token (the empty path), per spec.md §4.4.
	ErrUndefinedQuote = errors.New("gaspricer: quote undefined for empty path")

	// ErrEdgeNotFound signals an internal inconsistency: a path referenced
	// an edge the graph no longer carries (graph rebuilt between path
	// search and quote).
	ErrEdgeNotFound = errors.New("gaspricer: edge not found in graph")
)
