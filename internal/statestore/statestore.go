// Package statestore is the durable metadata key/value store behind
// stateWrite/stateRead (§6): a single bbolt bucket keyed by name, used
// by the checkpoint loop to persist "<database>-chkpt" and by nothing
// else in the core.
package statestore

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var metadataBucket = []byte("metadata")

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metadataBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Write implements stateWrite(name, content) -> bool (§6); the bool
// is folded into the error (non-nil means it failed).
func (s *Store) Write(name string, content []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metadataBucket).Put([]byte(name), content)
	})
}

// Read implements stateRead(name, maxLen, &mut out) -> bool; ok is
// false when the key is absent (a missing checkpoint file, per §4.6,
// is not an error).
func (s *Store) Read(name string, maxLen int) (content []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metadataBucket).Get([]byte(name))
		if data == nil {
			return nil
		}
		if maxLen > 0 && len(data) > maxLen {
			return fmt.Errorf("statestore: value for %q exceeds max length %d", name, maxLen)
		}
		content = append([]byte(nil), data...)
		ok = true
		return nil
	})
	return content, ok, err
}
