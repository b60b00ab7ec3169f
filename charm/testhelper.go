// ABOUTME: BadgerDB-backed partner store for tests that need no charm server
// ABOUTME: Writes each batch in a single transaction, like a real partner flush

package charm

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v3"
)

// badgerStore keeps partner rows in a local BadgerDB.
type badgerStore struct {
	db *badger.DB
}

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (s *badgerStore) Set(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// SetMany commits the batch in one transaction. Keys badger rejects
// (empty, oversized) fail on their own; a failed commit fails the rest.
func (s *badgerStore) SetMany(pairs map[string][]byte) map[string]error {
	failures := make(map[string]error)
	err := s.db.Update(func(txn *badger.Txn) error {
		for k, v := range pairs {
			if err := txn.Set([]byte(k), v); err != nil {
				if errors.Is(err, badger.ErrTxnTooBig) {
					return err
				}
				failures[k] = err
			}
		}
		return nil
	})
	if err != nil {
		for k := range pairs {
			if _, ok := failures[k]; !ok {
				failures[k] = err
			}
		}
	}
	return failures
}

func (s *badgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) Keys() ([][]byte, error) {
	return s.KeysWithPrefix(nil)
}

func (s *badgerStore) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// Sync is a no-op; there is no server behind a test store.
func (s *badgerStore) Sync() error { return nil }

func (s *badgerStore) Reset() error { return s.db.DropAll() }

func (s *badgerStore) Close() error { return s.db.Close() }

// NewTestClient returns a partner client over a throwaway BadgerDB directory.
// Call the returned cleanup before the test ends.
func NewTestClient(t *testing.T) (*Client, func()) {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}

	c := &Client{
		store:  &badgerStore{db: db},
		config: &Config{Host: "localhost", AutoSync: false},
	}

	cleanup := func() {
		if err := c.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	}
	return c, cleanup
}
