package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var stateBucket = []byte("state")

// BoltDB is a persistent key-value store backed by a single bbolt file. All
// keys live in one bucket.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates or opens the bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, value)
	})
}

// Get retrieves a value for a given key.
func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(stateBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		out = append([]byte{}, value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Has reports whether the key exists.
func (b *BoltDB) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// WriteBatch writes all entries in one transaction.
func (b *BoltDB) WriteBatch(entries []KV) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		for _, entry := range entries {
			if err := bucket.Put(entry.Key, entry.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database file.
func (b *BoltDB) Close() {
	_ = b.db.Close()
}
