package catalogue

import (
	"github.com/fberger-xyz/orderbook-wtf/internal/pool"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// ProtocolMessage is one item of the protocol stream: a full post-block
// simulation state per modified component, plus add/remove signals, per
// spec.md §6. A nil entry in States models a single-component decode
// failure on the wire (§4.3 point 4) — it is dropped, not applied.
type ProtocolMessage struct {
	BlockNumber  uint64
	NewPairs     map[types.ComponentID]types.Component
	RemovedPairs map[types.ComponentID]types.Component
	States       map[types.ComponentID]StateBlob
}

// StateBlob carries a decoded simulation state, or a decode error recorded
// against the component id so the ingestor can drop just that entry.
type StateBlob struct {
	State     pool.State
	DecodeErr error
}

// BalanceMessage is one item of the balance stream: per-component raw
// balances, keyed by token address hex string on the wire.
type BalanceMessage struct {
	Snapshots map[types.ComponentID]BalanceSnapshot
}

// BalanceSnapshot is the wire shape for one component's balance-only
// update: its descriptor (used to learn an unknown component, same as the
// protocol stream's new_pairs) and a raw hex balance per token address.
type BalanceSnapshot struct {
	Component     types.Component
	TokenBalances map[string]string // token address hex -> raw balance hex
}
