package catalogue

import "errors"

var (
	// ErrUnknownComponent is the decode error the websocket protocol
	// stream's default state decoder records for every state payload, since
	// it has no protocol-family codec. The Store's read accessors report a
	// missing id with a false ok value instead.
	ErrUnknownComponent = errors.New("catalogue: unknown component")

	// ErrTokenConflict marks a second sighting of a token address whose
	// decimals/symbol/gas disagree with the first (spec invariant 3:
	// tokens are immutable once observed). The conflicting sighting is
	// rejected, not applied.
	ErrTokenConflict = errors.New("catalogue: conflicting token redefinition")

	// ErrNotReady is returned by the websocket streams' Next when called
	// before a successful Connect. Readiness of the catalogue itself is
	// reported by Store.Ready.
	ErrNotReady = errors.New("catalogue: not ready")
)
