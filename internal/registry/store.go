package registry

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// keyValue is one pending write.
type keyValue struct {
	key   []byte // key is the full prefixed key
	value []byte // value is the encoded value
}

// store is the Pebble layer under the registry. Each write is one batch,
// synced to the WAL before it returns.
type store struct {
	db *pebble.DB // db is the underlying Pebble database
}

// openStore opens or creates the Pebble database at dir.
func openStore(dir string) (*store, error) {
	cache := pebble.NewCache(4 << 20)
	defer cache.Unref()

	db, err := pebble.Open(dir, &pebble.Options{
		Cache:        cache,
		MemTableSize: 1 << 20,
	})
	if err != nil {
		return nil, err
	}

	return &store{db: db}, nil
}

// lookup returns a copy of the value under key and whether it exists.
func (s *store) lookup(key []byte) ([]byte, bool, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	return append([]byte(nil), value...), true, nil
}

// write applies every pair atomically.
func (s *store) write(pairs ...keyValue) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range pairs {
		if err := batch.Set(kv.key, kv.value, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.Sync)
}

// scan calls fn for each pair under prefix in key order, with the prefix
// removed from the key. An error from fn stops the scan.
func (s *store) scan(prefix []byte, fn func(name, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key()[len(prefix):], value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound is the smallest key greater than every key under
// prefix, or nil when prefix is all 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xFF {
			upper := append([]byte(nil), prefix[:i+1]...)
			upper[i]++

			return upper
		}
	}

	return nil
}

// close closes the database.
func (s *store) close() error {
	return s.db.Close()
}
