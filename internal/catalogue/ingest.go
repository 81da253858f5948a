package catalogue

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// ProtocolStream is the upstream source of protocol-stream messages: the
// first message received after Connect is always treated as a full
// snapshot, every subsequent message as a delta (spec.md §4.3 points 1-2).
type ProtocolStream interface {
	Connect(ctx context.Context) error
	Next(ctx context.Context) (ProtocolMessage, bool, error) // ok=false at natural end-of-stream
	Close() error
}

// BalanceStream is the upstream source of balance-stream messages, kept
// independent of ProtocolStream per spec.md §4.3 point 3.
type BalanceStream interface {
	Connect(ctx context.Context) error
	Next(ctx context.Context) (BalanceMessage, bool, error)
	Close() error
}

// Ingestor owns the two stream-consumer goroutines that keep a Store in
// sync with the upstream indexer. Grounded on the teacher's network-client
// reconnect discipline, generalized to exponential backoff via
// cenkalti/backoff/v4 in place of the teacher's fixed-interval retry loop,
// since the pack's wider dependency set offers a purpose-built library for
// exactly this concern.
type Ingestor struct {
	store    *Store
	protocol ProtocolStream
	balances BalanceStream
	logger   *log.Logger
}

// NewIngestor wires a Store to its two upstream sources.
func NewIngestor(store *Store, protocol ProtocolStream, balances BalanceStream, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Ingestor{store: store, protocol: protocol, balances: balances, logger: logger}
}

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever; the stream is a long-lived process dependency
	return b
}

// RunProtocolStream connects, reads the first message as a full snapshot,
// then applies every subsequent message as a delta, reconnecting with
// exponential backoff on any connection error. Returns only when ctx is
// canceled.
func (ig *Ingestor) RunProtocolStream(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := backoff.Retry(func() error {
			return ig.runProtocolSession(ctx)
		}, backoff.WithContext(newBackoff(), ctx))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			ig.logger.WithError(err).Error("catalogue: protocol stream session ended, retrying")
		}
	}
}

func (ig *Ingestor) runProtocolSession(ctx context.Context) error {
	ig.store.MarkLaunching()
	if err := ig.protocol.Connect(ctx); err != nil {
		ig.logger.WithError(err).Warn("catalogue: protocol stream connect failed")
		ig.store.MarkError()
		return err
	}
	defer ig.protocol.Close()
	ig.store.MarkSyncing()

	first := true
	for {
		msg, ok, err := ig.protocol.Next(ctx)
		if err != nil {
			ig.store.MarkError()
			return err
		}
		if !ok {
			return nil
		}
		if first {
			ig.store.ApplySnapshot(msg.BlockNumber, msg.NewPairs, msg.States)
			first = false
			continue
		}
		ig.store.ApplyBlock(msg.BlockNumber, msg.RemovedPairs, msg.NewPairs, msg.States)
	}
}

// RunBalanceStream mirrors RunProtocolStream for the independent balance
// stream: no snapshot/delta distinction, every message replaces the balance
// map of the components it names.
func (ig *Ingestor) RunBalanceStream(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := backoff.Retry(func() error {
			return ig.runBalanceSession(ctx)
		}, backoff.WithContext(newBackoff(), ctx))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			ig.logger.WithError(err).Error("catalogue: balance stream session ended, retrying")
		}
	}
}

func (ig *Ingestor) runBalanceSession(ctx context.Context) error {
	if err := ig.balances.Connect(ctx); err != nil {
		ig.logger.WithError(err).Warn("catalogue: balance stream connect failed")
		return err
	}
	defer ig.balances.Close()

	for {
		msg, ok, err := ig.balances.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		ig.store.ApplyBalances(msg.Snapshots)
	}
}
