// Package repairstore persists out-of-band payloads keyed by revision, such
// as content removed from the tree that a change family may need to repair
// state during invert. The store honours the ancestry-trimming contract: once
// a prefix of the commit graph is dropped, the payloads of the trimmed
// revisions, and of the new tail itself, are evicted.
package repairstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"gitlab.com/stemma-project/stemma/internal/log"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/trim"
)

// KeyPrefix is the prefix of all revision payload keys in the database.
const KeyPrefix = "r/"

const cacheSize = 256

// RevisionKey generates the database key of a revision's payload.
func RevisionKey(rev graph.RevisionTag) []byte {
	key := make([]byte, 0, len(KeyPrefix)+len(rev.Session)+8)
	key = append(key, KeyPrefix...)
	key = append(key, rev.Session[:]...)
	return binary.BigEndian.AppendUint64(key, rev.Ordinal)
}

// Store is a badger-backed payload store with an LRU read cache.
type Store struct {
	logger log.Logger
	db     *badger.DB
	cache  *lru.Cache[graph.RevisionTag, []byte]

	unsubscribe func()
}

// Open opens or creates a store in the given directory.
func Open(logger log.Logger, dir string) (*Store, error) {
	return open(logger, badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory opens a store that keeps all data in memory. Used by tests and
// the replay tool.
func OpenInMemory(logger log.Logger) (*Store, error) {
	return open(logger, badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(logger log.Logger, opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	cache, err := lru.New[graph.RevisionTag, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create read cache: %w", err)
	}

	return &Store{logger: logger, db: db, cache: cache}, nil
}

// Put stores payload under the given revision, replacing any previous value.
func (s *Store) Put(rev graph.RevisionTag, payload []byte) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(RevisionKey(rev), payload)
	}); err != nil {
		return fmt.Errorf("store payload of %s: %w", rev, err)
	}

	s.cache.Add(rev, payload)
	return nil
}

// Get returns the payload stored under the given revision and whether one
// exists.
func (s *Store) Get(rev graph.RevisionTag) ([]byte, bool, error) {
	if payload, ok := s.cache.Get(rev); ok {
		return payload, true, nil
	}

	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(RevisionKey(rev))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load payload of %s: %w", rev, err)
	}

	s.cache.Add(rev, payload)
	return payload, true, nil
}

// Len returns the number of stored payloads.
func (s *Store) Len() (int, error) {
	var count int
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(KeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	}); err != nil {
		return 0, fmt.Errorf("count payloads: %w", err)
	}
	return count, nil
}

// EvictTrimmed drops the payloads of all trimmed revisions and of the new
// tail. The tail becomes an unreachable boundary once nothing can walk
// backwards past it, so its out-of-band data is dead as well.
func (s *Store) EvictTrimmed(event trim.Event) error {
	revisions := make([]graph.RevisionTag, 0, len(event.Revisions)+1)
	revisions = append(revisions, event.Revisions...)
	if !event.NewTail.IsNone() {
		revisions = append(revisions, event.NewTail)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		for _, rev := range revisions {
			if err := txn.Delete(RevisionKey(rev)); err != nil {
				return fmt.Errorf("delete payload of %s: %w", rev, err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("evict trimmed payloads: %w", err)
	}

	for _, rev := range revisions {
		s.cache.Remove(rev)
	}

	return nil
}

// Attach subscribes the store to a trimming notifier so trimmed revisions are
// evicted as they are announced.
func (s *Store) Attach(notifier *trim.Notifier) {
	s.Detach()
	s.unsubscribe = notifier.Subscribe(func(event trim.Event) {
		if err := s.EvictTrimmed(event); err != nil {
			s.logger.WithError(err).Error("evicting trimmed revisions")
		}
	})
}

// Detach unsubscribes the store from its trimming notifier.
func (s *Store) Detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Close detaches the store and closes the underlying database.
func (s *Store) Close() error {
	s.Detach()
	return s.db.Close()
}
