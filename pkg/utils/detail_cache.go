// Package utils provides supporting data structures for the star map
// viewer.
package utils

import (
	"encoding/binary"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// DetailCache persists resolved star details across viewer sessions so
// a restart does not re-fetch the message of every visible star. Reads
// go through an in-memory cache; writes go to badger and the cache.
type DetailCache struct {
	db    *badger.DB
	cache sync.Map
}

func OpenDetailCache(path string) (*DetailCache, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DetailCache{db: db}, nil
}

func (c *DetailCache) Close() error {
	return c.db.Close()
}

// Put stores the encoded detail record for a star id.
func (c *DetailCache) Put(id int64, val []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(id), val)
	})
	if err != nil {
		return err
	}
	c.cache.Store(id, val)
	return nil
}

// Get returns the encoded detail record for a star id, if present.
func (c *DetailCache) Get(id int64) ([]byte, bool) {
	if v, ok := c.cache.Load(id); ok {
		return v.([]byte), true
	}

	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	c.cache.Store(id, val)
	return val, true
}

// Delete drops a star's cached detail, e.g. after a delete event.
func (c *DetailCache) Delete(id int64) error {
	c.cache.Delete(id)
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(cacheKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func cacheKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
