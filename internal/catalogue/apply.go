package catalogue

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fberger-xyz/orderbook-wtf/internal/pool"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// ApplySnapshot treats every entry as a creation: the initial protocol
// stream message (spec.md §4.3 point 1). It populates the catalogue and
// flips the ready flag; callers MUST NOT call this again for the same
// connection — the next call after a reconnect is itself a fresh snapshot,
// which is exactly what this method models, so the ingestor simply calls it
// again on each reconnect's first message.
func (s *Store) ApplySnapshot(blockNumber uint64, newPairs map[types.ComponentID]types.Component, states map[types.ComponentID]StateBlob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.components = make(map[types.ComponentID]types.Component, len(newPairs))
	s.states = make(map[types.ComponentID]pool.State, len(newPairs))
	s.balances = make(map[types.ComponentID]types.Balances, len(newPairs))

	updated := make([]types.ComponentID, 0, len(newPairs))
	for id, comp := range newPairs {
		if comp.HasZeroToken() {
			s.logger.WithField("component_id", string(id)).Warn("catalogue: snapshot component has zero-address token, excluded")
			continue
		}
		s.registerTokensFromComponent(comp)
		s.components[id] = comp
		updated = append(updated, id)
	}
	for id, blob := range states {
		if blob.DecodeErr != nil || blob.State == nil {
			s.logger.WithField("component_id", string(id)).WithError(blob.DecodeErr).Warn("catalogue: dropping component with decode failure")
			continue
		}
		if _, ok := s.components[id]; !ok {
			// A state with no matching descriptor: neither in this
			// snapshot's new_pairs nor previously known. Drop + log.
			s.logger.WithField("component_id", string(id)).Warn("catalogue: state references unknown component, dropped")
			continue
		}
		s.states[id] = blob.State
	}
	for id := range s.components {
		if _, ok := s.states[id]; !ok {
			// A component with no state yet: remove it too, so the
			// components and states maps carry the same key set.
			// Balances were reset above and are refilled by the
			// balance stream.
			delete(s.components, id)
		}
	}

	s.latestBlock = blockNumber
	s.lastUpdated = updated
	s.ready = true
	s.state = StateRunning
}

// ApplyBlock applies one subsequent protocol-stream message atomically:
// remove -> add -> overwrite, within a single exclusive lease, per spec.md
// §4.3 point 2.
func (s *Store) ApplyBlock(blockNumber uint64, removed, newPairs map[types.ComponentID]types.Component, states map[types.ComponentID]StateBlob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]types.ComponentID, 0, len(removed)+len(newPairs)+len(states))

	for id := range removed {
		delete(s.components, id)
		delete(s.states, id)
		delete(s.balances, id)
		updated = append(updated, id)
	}

	for id, comp := range newPairs {
		if comp.HasZeroToken() {
			s.logger.WithField("component_id", string(id)).Warn("catalogue: new component has zero-address token, excluded")
			continue
		}
		s.registerTokensFromComponent(comp)
		s.components[id] = comp
		updated = append(updated, id)
	}

	for id, blob := range states {
		if blob.DecodeErr != nil || blob.State == nil {
			s.logger.WithField("component_id", string(id)).WithError(blob.DecodeErr).Warn("catalogue: dropping component with decode failure")
			continue
		}
		if _, ok := s.components[id]; !ok {
			s.logger.WithField("component_id", string(id)).Warn("catalogue: state update references unknown component, dropped")
			continue
		}
		s.states[id] = blob.State
		updated = append(updated, id)
	}

	s.latestBlock = blockNumber
	s.lastUpdated = dedupeIDs(updated)
}

// ApplyBalances normalizes and replaces (never merges) the balance map of
// every reported component, per spec.md §4.3 point 3. Components the
// catalogue has never seen are learned from the snapshot's own descriptor
// when present, or dropped with a diagnostic otherwise.
func (s *Store) ApplyBalances(snapshots map[types.ComponentID]BalanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range snapshots {
		if _, ok := s.components[id]; !ok {
			if snap.Component.ID == "" || snap.Component.HasZeroToken() {
				s.logger.WithField("component_id", string(id)).Warn("catalogue: balance update for unknown component, dropped")
				continue
			}
			s.registerTokensFromComponent(snap.Component)
			s.components[id] = snap.Component
			if _, ok := s.states[id]; !ok {
				// No simulation state yet for this newly-learned
				// component: its state stays absent until the protocol
				// stream catches up, while its balances are stored below
				// (tolerated staleness, Design Notes §9 open question).
			}
		}

		bal := make(types.Balances, len(snap.TokenBalances))
		for addrHex, balHex := range snap.TokenBalances {
			addr, err := types.AddressFromHex(addrHex)
			if err != nil {
				s.logger.WithFields(map[string]interface{}{"component_id": string(id), "token": addrHex}).Warn("catalogue: malformed balance token address, skipped")
				continue
			}
			v, err := parseHexUint(balHex)
			if err != nil {
				s.logger.WithFields(map[string]interface{}{"component_id": string(id), "token": addrHex}).Warn("catalogue: malformed balance value, skipped")
				continue
			}
			bal[addr] = v
		}
		s.balances[id] = bal
	}
}

func parseHexUint(s string) (*uint256.Int, error) {
	v, err := uint256.FromHex(normalizeHexUint(s))
	if err != nil {
		// Fall back to decimal only when the string is not valid hex
		// (for example a leading zero); an unprefixed digit-only string
		// such as "2000" is read as hex.
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, err
		}
		v2, overflow := uint256.FromBig(i)
		if overflow {
			return nil, err
		}
		return v2, nil
	}
	return v, nil
}

func normalizeHexUint(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s
	}
	return "0x" + s
}

// registerTokensFromComponent learns every token address in comp as a
// zero-value placeholder token if not already known. Symbol/decimals/gas
// are filled in by registerToken when the indexer reports them explicitly;
// the catalogue never fabricates non-zero attributes.
func (s *Store) registerTokensFromComponent(comp types.Component) {
	for _, addr := range comp.Tokens {
		if _, ok := s.tokens[addr]; !ok {
			s.tokens[addr] = types.Token{Address: addr}
		}
	}
}

// RegisterToken records (or validates) a fully-described token sighting.
// Per spec invariant 3, decimals/symbol/gas are never revised: a second
// sighting with different values is rejected and logged, not applied.
func (s *Store) RegisterToken(t types.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerToken(t)
}

func (s *Store) registerToken(t types.Token) error {
	existing, ok := s.tokens[t.Address]
	if !ok || existing.Symbol == "" {
		s.tokens[t.Address] = t
		return nil
	}
	if !existing.Equal(t) {
		s.logger.WithFields(map[string]interface{}{
			"token": t.Address.Hex(), "existing_symbol": existing.Symbol, "new_symbol": t.Symbol,
		}).Error("catalogue: rejected conflicting token redefinition")
		return ErrTokenConflict
	}
	return nil
}

func dedupeIDs(ids []types.ComponentID) []types.ComponentID {
	seen := make(map[types.ComponentID]struct{}, len(ids))
	out := make([]types.ComponentID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
