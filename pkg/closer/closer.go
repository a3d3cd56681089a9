// Package closer drives the ledger close cycle: derive a working ledger from
// the last closed one, apply the candidate set in canonical order with retry
// passes, update the ancestry skip list, seal, and persist. The whole cycle is
// deterministic: two nodes closing the same parent with the same candidate set
// and close time produce byte-identical ledgers.
package closer

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"

	"github.com/veritasledger/veritas-core/pkg/applier"
	"github.com/veritasledger/veritas-core/pkg/ledger"
	"github.com/veritasledger/veritas-core/pkg/protocol"
	"github.com/veritasledger/veritas-core/pkg/txset"
)

// Persister writes a sealed ledger to durable storage. A failed persist
// aborts the close; the parent ledger stays untouched either way.
type Persister interface {
	PersistLedger(l *ledger.Ledger) error
}

// Closer advances the chain one ledger at a time.
type Closer struct {
	persister Persister

	optsApplier             *applier.Applier
	optsMaxApplyPasses      int
	optsCloseTimeResolution uint32

	log.Logger
}

// New creates a Closer. The persister may be nil, in which case sealed
// ledgers are kept in memory only.
func New(logger log.Logger, persister Persister, opts ...options.Option[Closer]) *Closer {
	return options.Apply(&Closer{
		persister:               persister,
		optsMaxApplyPasses:      10,
		optsCloseTimeResolution: protocol.DefaultCloseTimeResolution,
	}, opts, func(c *Closer) {
		c.Logger = logger.NewChildLogger("closer")
		if c.optsApplier == nil {
			c.optsApplier = applier.New()
		}
	})
}

// WithApplier replaces the default transaction applier.
func WithApplier(a *applier.Applier) options.Option[Closer] {
	return func(c *Closer) {
		c.optsApplier = a
	}
}

// WithMaxApplyPasses sets the floor of the retry-pass guard. The effective
// bound per close is the larger of this and the candidate count, so the guard
// never cuts off a converging candidate set.
func WithMaxApplyPasses(passes int) options.Option[Closer] {
	return func(c *Closer) {
		c.optsMaxApplyPasses = passes
	}
}

// WithCloseTimeResolution sets the granularity close times are rounded to.
func WithCloseTimeResolution(resolution uint32) options.Option[Closer] {
	return func(c *Closer) {
		c.optsCloseTimeResolution = resolution
	}
}

// Applier returns the transaction applier driving the close cycle.
func (c *Closer) Applier() *applier.Applier {
	return c.optsApplier
}

// CloseAndAdvance closes one ledger: it derives a working ledger from parent,
// applies candidates in canonical order until the retry queue reaches a fixed
// point, updates the skip list, seals with the given close time and persists.
// It returns the sealed ledger and the candidates that stayed retryable, which
// the caller may feed into the next round.
func (c *Closer) CloseAndAdvance(parent *ledger.Ledger, candidates *txset.Set, closeTime uint32, closeTimeAgreed bool) (*ledger.Ledger, []*protocol.Transaction, error) {
	working, err := parent.Derive()
	if err != nil {
		return nil, nil, ierrors.Wrap(err, "failed to derive working ledger")
	}

	deferred, err := c.applyCandidates(working, candidates)
	if err != nil {
		return nil, nil, err
	}

	if err := working.UpdateSkipList(); err != nil {
		return nil, nil, ierrors.Wrap(err, "failed to update skip list")
	}

	if err := working.Seal(closeTime, c.optsCloseTimeResolution, closeTimeAgreed); err != nil {
		return nil, nil, ierrors.Wrap(err, "failed to seal ledger")
	}

	if c.persister != nil {
		if err := c.persister.PersistLedger(working); err != nil {
			return nil, nil, ierrors.Wrapf(err, "failed to persist ledger %d", working.Sequence())
		}
	}

	c.LogDebug("ledger closed", "sequence", working.Sequence(), "hash", working.Hash(), "candidates", candidates.Size(), "deferred", len(deferred))

	return working, deferred, nil
}

// applyCandidates runs the retry loop. Each pass walks the queue in canonical
// content-hash order; transactions with a retryable outcome form the next
// pass's queue, preserving their relative order. The loop stops when a pass
// defers nothing or when it makes no progress at all. Every productive pass
// strictly shrinks the queue, so at most one pass per candidate is ever
// needed; the configured cap only guards against a transactor that reports
// progress without making any.
func (c *Closer) applyCandidates(working *ledger.Ledger, candidates *txset.Set) ([]*protocol.Transaction, error) {
	queue := candidates.SortedTransactions()

	maxPasses := c.optsMaxApplyPasses
	if len(queue) > maxPasses {
		maxPasses = len(queue)
	}

	for pass := 0; len(queue) > 0 && pass < maxPasses; pass++ {
		flags := applier.Flags(0)
		if pass > 0 {
			flags |= applier.FlagRetry
		}

		retries := make([]*protocol.Transaction, 0, len(queue))
		for _, tx := range queue {
			code, err := c.optsApplier.Apply(working, tx, flags)
			if err != nil {
				return nil, ierrors.Wrapf(err, "failed to apply transaction %s", tx.ID())
			}

			switch code.Class() {
			case protocol.ClassRetry:
				retries = append(retries, tx)
			case protocol.ClassTerminal:
				c.LogDebug("transaction rejected", "tx", tx.ID(), "result", code)
			}
		}

		if len(retries) == len(queue) {
			// fixed point: nothing applied this pass, further passes cannot help
			queue = retries

			break
		}

		queue = retries
	}

	return queue, nil
}
