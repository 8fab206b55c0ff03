// Package persist is a small key-value store for entity payloads, backed
// by bbolt. Values are JSON encoded and grouped into buckets, one bucket
// per payload kind.
//
// A Store is a collaborator of the reactive runtime, not part of it:
// tasks save snapshots of entity state they read through core.Read and
// restore them at startup with Load.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/go-drift/reactor/pkg/errors"
)

// OpenTimeout bounds how long Open waits for the file lock held by
// another process.
var OpenTimeout = time.Second

// Store is a bbolt database holding JSON values.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the database at path. Parent directories are
// created as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persist: create dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores v under bucket/key, replacing any previous value.
func (s *Store) Save(bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persist: encode %s/%s: %w", bucket, key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Load decodes the value stored under bucket/key into v. A missing bucket
// or key yields an error matching errors.ErrNotFound.
func (s *Store) Load(bucket, key string, v any) error {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return notFound(bucket, key)
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return notFound(bucket, key)
		}
		// raw is only valid inside the transaction.
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("persist: decode %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes bucket/key. Deleting a missing key is not an error.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys returns the keys of bucket in sorted order.
func (s *Store) Keys(bucket string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys, err
}

// NextSequence returns a new monotonically increasing number for bucket.
func (s *Store) NextSequence(bucket string) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		seq, err = b.NextSequence()
		return err
	})
	return seq, err
}

func notFound(bucket, key string) error {
	return errors.New("persist.Load", errors.KindNotFound, nil, fmt.Errorf("no value at %s/%s", bucket, key))
}
