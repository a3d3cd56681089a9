// Package storage persists sealed ledgers. State and transaction tree nodes
// land in content-addressed realms, headers in a typed store keyed by their
// hash, and an authenticated map commits the sequence-to-hash chain so a
// node's full history can be proven from a single root.
package storage

import (
	"encoding/binary"

	"github.com/iotaledger/hive.go/ads"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/zyedidia/generic/cache"

	"github.com/veritasledger/veritas-core/pkg/core/types"
	"github.com/veritasledger/veritas-core/pkg/database"
	"github.com/veritasledger/veritas-core/pkg/ledger"
	"github.com/veritasledger/veritas-core/pkg/protocol"
)

const (
	headersPrefix byte = iota
	stateNodesPrefix
	txNodesPrefix
	commitmentsPrefix
	latestPrefix
)

var (
	// ErrLedgerNotSealed is returned when an open ledger is handed to
	// PersistLedger.
	ErrLedgerNotSealed = ierrors.New("ledger is not sealed")

	// ErrHeaderNotFound is returned when no header exists for the requested
	// hash or sequence.
	ErrHeaderNotFound = ierrors.New("header not found")

	latestSequenceKey = []byte("latestSequence")
)

// Store is the durable home of sealed ledgers.
type Store struct {
	stateNodes  kvstore.KVStore
	txNodes     kvstore.KVStore
	latest      kvstore.KVStore
	headers     *kvstore.TypedStore[types.Identifier, *protocol.Header]
	commitments ads.Map[types.Identifier, uint32, types.Identifier]
	headerCache *cache.Cache[types.Identifier, *protocol.Header]

	dbInstance *database.DBInstance

	mutex syncutils.RWMutex

	optsHeaderCacheSize int

	log.Logger
}

// New wraps a backing KVStore. The backing store may be empty or carry a
// previously persisted history; the commitments map picks up where it left
// off.
func New(logger log.Logger, backingStore kvstore.KVStore, opts ...options.Option[Store]) *Store {
	return options.Apply(&Store{
		optsHeaderCacheSize: 100,
	}, opts, func(s *Store) {
		s.Logger = logger.NewChildLogger("storage")

		s.stateNodes = lo.PanicOnErr(backingStore.WithExtendedRealm(kvstore.Realm{stateNodesPrefix}))
		s.txNodes = lo.PanicOnErr(backingStore.WithExtendedRealm(kvstore.Realm{txNodesPrefix}))
		s.latest = lo.PanicOnErr(backingStore.WithExtendedRealm(kvstore.Realm{latestPrefix}))
		s.headers = kvstore.NewTypedStore(
			lo.PanicOnErr(backingStore.WithExtendedRealm(kvstore.Realm{headersPrefix})),
			types.Identifier.Bytes,
			types.IdentifierFromBytes,
			(*protocol.Header).Bytes,
			protocol.HeaderFromBytes,
		)
		s.commitments = ads.NewMap[types.Identifier](
			lo.PanicOnErr(backingStore.WithExtendedRealm(kvstore.Realm{commitmentsPrefix})),
			types.Identifier.Bytes,
			types.IdentifierFromBytes,
			sequenceToBytes,
			sequenceFromBytes,
			types.Identifier.Bytes,
			types.IdentifierFromBytes,
		)
		s.headerCache = cache.New[types.Identifier, *protocol.Header](s.optsHeaderCacheSize)
	})
}

// NewOnDisk opens the database described by dbConfig and wraps it in a Store.
// Shutdown must be called to flush and mark the database healthy.
func NewOnDisk(logger log.Logger, dbConfig database.Config, opts ...options.Option[Store]) *Store {
	dbInstance := database.NewDBInstance(dbConfig)

	s := New(logger, dbInstance.KVStore(), opts...)
	s.dbInstance = dbInstance

	return s
}

// Shutdown flushes and closes the backing database if the store owns one.
func (s *Store) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.dbInstance != nil {
		s.dbInstance.Close()
	}
}

// WithHeaderCacheSize sets how many recent headers stay pinned in memory.
func WithHeaderCacheSize(size int) options.Option[Store] {
	return func(s *Store) {
		s.optsHeaderCacheSize = size
	}
}

// PersistLedger writes a sealed ledger: both trees' dirty nodes, the header,
// and the chain commitment. It satisfies the closer's Persister.
func (s *Store) PersistLedger(l *ledger.Ledger) error {
	if !l.IsClosed() {
		return ErrLedgerNotSealed
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	sequence := l.Sequence()

	stateNodes, err := l.StateTree().FlushDirty(s.stateNodes, sequence)
	if err != nil {
		return ierrors.Wrapf(err, "failed to flush state tree of ledger %d", sequence)
	}
	txNodes, err := l.TxTree().FlushDirty(s.txNodes, sequence)
	if err != nil {
		return ierrors.Wrapf(err, "failed to flush transaction tree of ledger %d", sequence)
	}

	header := l.Header()
	headerHash := header.Hash()
	if err := s.headers.Set(headerHash, header); err != nil {
		return ierrors.Wrapf(err, "failed to store header of ledger %d", sequence)
	}

	if err := s.commitments.Set(sequence, headerHash); err != nil {
		return ierrors.Wrapf(err, "failed to commit ledger %d", sequence)
	}
	if err := s.commitments.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit chain commitments")
	}

	if err := s.setLatestSequence(sequence); err != nil {
		return err
	}

	s.headerCache.Put(headerHash, header)

	s.LogDebug("ledger persisted", "sequence", sequence, "hash", headerHash, "stateNodes", stateNodes, "txNodes", txNodes)

	return nil
}

// Header returns the stored header with the given hash.
func (s *Store) Header(hash types.Identifier) (*protocol.Header, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if header, exists := s.headerCache.Get(hash); exists {
		return header, nil
	}

	header, err := s.headers.Get(hash)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrHeaderNotFound
		}

		return nil, ierrors.Wrapf(err, "failed to load header %s", hash)
	}

	s.headerCache.Put(hash, header)

	return header, nil
}

// HeaderBySequence returns the committed header of the given ledger sequence.
func (s *Store) HeaderBySequence(sequence uint32) (*protocol.Header, error) {
	s.mutex.RLock()
	hash, exists, err := s.commitments.Get(sequence)
	s.mutex.RUnlock()
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to look up commitment for ledger %d", sequence)
	}
	if !exists {
		return nil, ErrHeaderNotFound
	}

	return s.Header(hash)
}

// LatestSequence returns the highest persisted ledger sequence, or 0 when
// nothing was persisted yet.
func (s *Store) LatestSequence() (uint32, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, err := s.latest.Get(latestSequenceKey)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, nil
		}

		return 0, ierrors.Wrap(err, "failed to load latest sequence")
	}

	sequence, _, err := sequenceFromBytes(value)

	return sequence, err
}

// LatestHeader returns the header of the highest persisted ledger.
func (s *Store) LatestHeader() (*protocol.Header, error) {
	sequence, err := s.LatestSequence()
	if err != nil {
		return nil, err
	}
	if sequence == 0 {
		return nil, ErrHeaderNotFound
	}

	return s.HeaderBySequence(sequence)
}

// CommitmentsRoot returns the root of the authenticated sequence-to-hash map.
// Two nodes that persisted the same history report the same root.
func (s *Store) CommitmentsRoot() types.Identifier {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.commitments.Root()
}

// StateNode returns the raw persisted state-tree node with the given hash.
func (s *Store) StateNode(hash types.Identifier) ([]byte, error) {
	return s.node(s.stateNodes, hash)
}

// TxNode returns the raw persisted transaction-tree node with the given hash.
func (s *Store) TxNode(hash types.Identifier) ([]byte, error) {
	return s.node(s.txNodes, hash)
}

func (s *Store) node(store kvstore.KVStore, hash types.Identifier) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, err := store.Get(hash[:])
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to load node %s", hash)
	}

	return value, nil
}

func (s *Store) setLatestSequence(sequence uint32) error {
	current, err := s.latest.Get(latestSequenceKey)
	if err == nil {
		currentSequence, _, err := sequenceFromBytes(current)
		if err != nil {
			return err
		}
		if currentSequence >= sequence {
			return nil
		}
	} else if !ierrors.Is(err, kvstore.ErrKeyNotFound) {
		return ierrors.Wrap(err, "failed to load latest sequence")
	}

	value := lo.PanicOnErr(sequenceToBytes(sequence))
	if err := s.latest.Set(latestSequenceKey, value); err != nil {
		return ierrors.Wrap(err, "failed to store latest sequence")
	}

	return nil
}

func sequenceToBytes(sequence uint32) ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, sequence)

	return buf, nil
}

func sequenceFromBytes(b []byte) (uint32, int, error) {
	if len(b) < 4 {
		return 0, 0, ierrors.New("malformed sequence bytes")
	}

	return binary.LittleEndian.Uint32(b), 4, nil
}
