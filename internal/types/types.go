// Package types holds the data model shared by the catalogue, gas pricer,
// allocator and orderbook builder: tokens, component descriptors, and the
// per-component balance maps ingested from the upstream indexer.
package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Address is a 20-byte EVM account/contract address. Equality and hashing are
// by the lowercase hex form; AddressFromHex must be used at every ingest
// and lookup boundary.
type Address [20]byte

// ZeroAddress is the conventional null address; components referencing it
// anywhere in their token list are excluded from the catalogue.
var ZeroAddress Address

// AddressFromCommon converts a go-ethereum common.Address into an Address.
func AddressFromCommon(a common.Address) Address {
	var out Address
	copy(out[:], a.Bytes())
	return out
}

// AddressFromHex parses a hex-encoded address, accepting an optional "0x"
// prefix and any case, and normalizes it to lowercase internally.
func AddressFromHex(s string) (Address, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != 40 {
		return Address{}, fmt.Errorf("address %q: want 40 hex chars, got %d", s, len(s))
	}
	return AddressFromCommon(common.HexToAddress(s)), nil
}

// Hex returns the lowercase "0x"-prefixed hex form used for all catalogue
// keys and equality comparisons.
func (a Address) Hex() string {
	return strings.ToLower(common.BytesToAddress(a[:]).Hex())
}

func (a Address) IsZero() bool { return a == ZeroAddress }

// ComponentID is the opaque identifier for a pool instance: a pool address
// for most protocol families, or a pool sub-identifier for vault-style
// pools. Always the normalized lowercase hex form.
type ComponentID string

// Normalize lowercases a raw component id as seen on the wire.
func Normalize(id string) ComponentID {
	return ComponentID(strings.ToLower(strings.TrimSpace(id)))
}

// Token is immutable once observed: decimals, symbol and gas estimate are
// never revised after first sighting (spec invariant: a second sighting with
// different values is rejected and logged, see catalogue.Store.RegisterToken).
type Token struct {
	Address  Address
	Decimals uint8
	Symbol   string
	// GasUnits is the per-token gas estimate, an arbitrary-precision
	// non-negative integer as carried on the wire.
	GasUnits *big.Int
}

// Equal reports whether two tokens describe the same address with identical
// immutable attributes.
func (t Token) Equal(o Token) bool {
	if t.Address != o.Address || t.Decimals != o.Decimals || t.Symbol != o.Symbol {
		return false
	}
	if (t.GasUnits == nil) != (o.GasUnits == nil) {
		return false
	}
	if t.GasUnits != nil && t.GasUnits.Cmp(o.GasUnits) != 0 {
		return false
	}
	return true
}

// Protocol tags the AMM family a component belongs to.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolConstantProductV2
	ProtocolConcentratedV3
	ProtocolConcentratedV4
	ProtocolWeightedVault
	ProtocolStableCurve
)

func (p Protocol) String() string {
	switch p {
	case ProtocolConstantProductV2:
		return "constant-product-v2"
	case ProtocolConcentratedV3:
		return "concentrated-v3"
	case ProtocolConcentratedV4:
		return "concentrated-v4"
	case ProtocolWeightedVault:
		return "weighted-vault"
	case ProtocolStableCurve:
		return "stable-curve"
	default:
		return "unknown"
	}
}

// Component is a pool descriptor: the static, protocol-agnostic metadata the
// indexer reports for one pool instance. Never mutated in place — a removal
// followed by re-add is a new lifecycle instance with its own Component
// value.
type Component struct {
	ID         ComponentID
	Tokens     []Address // ordered; length >= 2, pair pools have exactly 2
	Protocol   Protocol
	Attributes map[string]string // fee encoding, tick spacing, hook address, ...
	CreatedTx  string
}

// HasToken reports whether addr appears anywhere in the component's token
// list.
func (c Component) HasToken(addr Address) bool {
	for _, t := range c.Tokens {
		if t == addr {
			return true
		}
	}
	return false
}

// HasPair reports whether both a and b appear in the component's token list,
// in any order/position — the pool-selection predicate of the orderbook
// builder.
func (c Component) HasPair(a, b Address) bool {
	return c.HasToken(a) && c.HasToken(b)
}

// HasZeroToken reports whether any token in the descriptor is the zero
// address; such components are excluded at ingest time.
func (c Component) HasZeroToken() bool {
	for _, t := range c.Tokens {
		if t.IsZero() {
			return true
		}
	}
	return false
}

// Balances maps a component's token addresses to raw (smallest-unit)
// balances. Kept separately from simulation state because balance-only
// deltas may arrive independently of state updates.
type Balances map[Address]*uint256.Int

// Clone returns a deep copy safe to hand to a reader outside the catalogue
// lock.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for addr, v := range b {
		if v == nil {
			out[addr] = nil
			continue
		}
		out[addr] = new(uint256.Int).Set(v)
	}
	return out
}
