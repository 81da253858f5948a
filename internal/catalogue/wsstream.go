package catalogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fberger-xyz/orderbook-wtf/internal/pool"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// WSProtocolStream is a ProtocolStream backed by the upstream indexer's
// websocket feed. Grounded on original_source's stream.rs (the Tycho
// client's long-lived component/state subscription, authenticated with an
// api key), re-expressed as a plain JSON-over-websocket client since no Go
// equivalent of the upstream Rust client exists in the retrieval pack.
type WSProtocolStream struct {
	endpoint string
	authKey  string
	conn     *websocket.Conn
}

// NewWSProtocolStream builds a protocol-stream client for endpoint,
// authenticated with authKey (sent as a header, matching the original's
// auth_key coupling).
func NewWSProtocolStream(endpoint, authKey string) *WSProtocolStream {
	return &WSProtocolStream{endpoint: endpoint, authKey: authKey}
}

func (s *WSProtocolStream) Connect(ctx context.Context) error {
	header := http.Header{}
	if s.authKey != "" {
		header.Set("Authorization", "Bearer "+s.authKey)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return err
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// wireProtocolMessage is the JSON envelope read off the websocket; decoded
// into the richer ProtocolMessage (with live pool.State values) by the
// caller-supplied decoder, since state decoding is protocol-family
// specific and not itself part of the transport.
type wireProtocolMessage struct {
	BlockNumber  uint64                         `json:"block_number"`
	NewPairs     map[string]wireComponent       `json:"new_pairs"`
	RemovedPairs map[string]wireComponent       `json:"removed_pairs"`
	States       map[string]json.RawMessage     `json:"states"`
}

type wireComponent struct {
	Tokens     []string          `json:"tokens"`
	Protocol   string            `json:"protocol"`
	Attributes map[string]string `json:"attributes"`
	CreatedTx  string            `json:"created_tx"`
}

// StateDecoder turns one component's raw wire state payload into a live
// pool.State, dispatching on the component's protocol tag. Supplied by the
// caller because the wire encoding of concentrated/vault state is not part
// of this package's concern.
type StateDecoder func(protocol types.Protocol, raw json.RawMessage) (pool.State, error)

func (s *WSProtocolStream) Next(ctx context.Context) (ProtocolMessage, bool, error) {
	return s.next(ctx, defaultStateDecoder)
}

// next is decomposed from Next so tests can inject a fake decoder without
// a real websocket connection.
func (s *WSProtocolStream) next(ctx context.Context, decode StateDecoder) (ProtocolMessage, bool, error) {
	if s.conn == nil {
		return ProtocolMessage{}, false, ErrNotReady
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return ProtocolMessage{}, false, nil
		}
		return ProtocolMessage{}, false, err
	}
	var wire wireProtocolMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return ProtocolMessage{}, false, err
	}
	return translateProtocolMessage(wire, decode)
}

func translateProtocolMessage(wire wireProtocolMessage, decode StateDecoder) (ProtocolMessage, bool, error) {
	msg := ProtocolMessage{
		BlockNumber:  wire.BlockNumber,
		NewPairs:     make(map[types.ComponentID]types.Component, len(wire.NewPairs)),
		RemovedPairs: make(map[types.ComponentID]types.Component, len(wire.RemovedPairs)),
		States:       make(map[types.ComponentID]StateBlob, len(wire.States)),
	}
	for id, wc := range wire.NewPairs {
		msg.NewPairs[types.Normalize(id)] = translateComponent(id, wc)
	}
	for id, wc := range wire.RemovedPairs {
		msg.RemovedPairs[types.Normalize(id)] = translateComponent(id, wc)
	}
	for id, raw := range wire.States {
		comp, known := msg.NewPairs[types.Normalize(id)]
		protocol := types.ProtocolUnknown
		if known {
			protocol = comp.Protocol
		}
		st, err := decode(protocol, raw)
		msg.States[types.Normalize(id)] = StateBlob{State: st, DecodeErr: err}
	}
	return msg, true, nil
}

func translateComponent(id string, wc wireComponent) types.Component {
	toks := make([]types.Address, 0, len(wc.Tokens))
	for _, hex := range wc.Tokens {
		addr, err := types.AddressFromHex(hex)
		if err != nil {
			continue
		}
		toks = append(toks, addr)
	}
	return types.Component{
		ID:         types.Normalize(id),
		Tokens:     toks,
		Protocol:   protocolFromWire(wc.Protocol),
		Attributes: wc.Attributes,
		CreatedTx:  wc.CreatedTx,
	}
}

func protocolFromWire(s string) types.Protocol {
	switch s {
	case "constant-product-v2":
		return types.ProtocolConstantProductV2
	case "concentrated-v3":
		return types.ProtocolConcentratedV3
	case "concentrated-v4":
		return types.ProtocolConcentratedV4
	case "weighted-vault":
		return types.ProtocolWeightedVault
	case "stable-curve":
		return types.ProtocolStableCurve
	default:
		return types.ProtocolUnknown
	}
}

// defaultStateDecoder has no family-specific codecs registered: every state
// payload decodes to ErrUnknownComponent, so the store drops every state
// entry read through Next. WSProtocolStream has no exported way to supply
// another decoder; only the unexported next takes one.
func defaultStateDecoder(types.Protocol, json.RawMessage) (pool.State, error) {
	return nil, ErrUnknownComponent
}

func (s *WSProtocolStream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// WSBalanceStream mirrors WSProtocolStream for the independent balance
// feed.
type WSBalanceStream struct {
	endpoint string
	authKey  string
	conn     *websocket.Conn
}

// NewWSBalanceStream builds a balance-stream client for endpoint.
func NewWSBalanceStream(endpoint, authKey string) *WSBalanceStream {
	return &WSBalanceStream{endpoint: endpoint, authKey: authKey}
}

func (s *WSBalanceStream) Connect(ctx context.Context) error {
	header := http.Header{}
	if s.authKey != "" {
		header.Set("Authorization", "Bearer "+s.authKey)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return err
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

type wireBalanceMessage struct {
	Snapshots map[string]wireBalanceSnapshot `json:"snapshots"`
}

type wireBalanceSnapshot struct {
	Component     *wireComponent    `json:"component,omitempty"`
	TokenBalances map[string]string `json:"token_balances"`
}

func (s *WSBalanceStream) Next(ctx context.Context) (BalanceMessage, bool, error) {
	if s.conn == nil {
		return BalanceMessage{}, false, ErrNotReady
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return BalanceMessage{}, false, nil
		}
		return BalanceMessage{}, false, err
	}
	var wire wireBalanceMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return BalanceMessage{}, false, err
	}
	msg := BalanceMessage{Snapshots: make(map[types.ComponentID]BalanceSnapshot, len(wire.Snapshots))}
	for id, ws := range wire.Snapshots {
		snap := BalanceSnapshot{TokenBalances: ws.TokenBalances}
		if ws.Component != nil {
			snap.Component = translateComponent(id, *ws.Component)
		}
		msg.Snapshots[types.Normalize(id)] = snap
	}
	return msg, true, nil
}

func (s *WSBalanceStream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
