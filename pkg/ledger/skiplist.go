package ledger

import (
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

// skipListCapacity bounds the rolling recent-ancestors entry.
const skipListCapacity = 256

// UpdateSkipList recomputes the back-reference chain to recent ancestors: the
// parent hash is appended to the rolling recent-ancestors entry, and on each
// 256-ledger boundary to that span's fixed entry as well.
func (l *Ledger) UpdateSkipList() error {
	if err := l.guardOpen(); err != nil {
		return err
	}

	l.mutex.RLock()
	sequence := l.header.Sequence
	parentHash := l.header.ParentHash
	l.mutex.RUnlock()

	if sequence <= 1 {
		return nil
	}
	prevSeq := sequence - 1

	if err := l.appendSkipHash(protocol.SkipListIndex(), parentHash, skipListCapacity); err != nil {
		return ierrors.Wrap(err, "failed to update rolling skip list")
	}

	if prevSeq%skipListCapacity == 0 {
		if err := l.appendSkipHash(protocol.SkipListIndexFor(prevSeq), parentHash, skipListCapacity); err != nil {
			return ierrors.Wrapf(err, "failed to update skip list span for sequence %d", prevSeq)
		}
	}

	return nil
}

// AncestorHashes returns the hashes in the rolling skip-list entry, oldest
// first. A freshly derived second ledger has none.
func (l *Ledger) AncestorHashes() ([]types.Identifier, error) {
	entry, exists := l.stateTree.Get(protocol.SkipListIndex())
	if !exists {
		return nil, nil
	}

	skipList, _, err := protocol.SkipListEntryFromBytes(entry)
	if err != nil {
		return nil, ierrors.Wrap(err, "corrupt skip list entry")
	}

	return skipList.Hashes, nil
}

func (l *Ledger) appendSkipHash(index types.Identifier, hash types.Identifier, capacity int) error {
	skipList := new(protocol.SkipListEntry)
	if entry, exists := l.stateTree.Get(index); exists {
		parsed, _, err := protocol.SkipListEntryFromBytes(entry)
		if err != nil {
			return err
		}
		skipList = parsed
	}

	skipList.Hashes = append(skipList.Hashes, hash)
	if len(skipList.Hashes) > capacity {
		skipList.Hashes = skipList.Hashes[len(skipList.Hashes)-capacity:]
	}

	entry, err := skipList.Bytes()
	if err != nil {
		return err
	}
	l.stateTree.Put(index, entry)

	return nil
}
