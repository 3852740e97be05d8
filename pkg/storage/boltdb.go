package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/felt/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSessions = []byte("sessions")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) <dataDir>/felt.db
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "felt.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketSessions, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveSession upserts a checkpoint keyed by session code
func (s *BoltStore) SaveSession(rec types.SessionRecord) error {
	if rec.Code == "" {
		return fmt.Errorf("session record has no code")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", rec.Code, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(rec.Code), data)
	})
}

func (s *BoltStore) GetSession(code string) (types.SessionRecord, error) {
	var rec types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(code))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// ListSessions returns every checkpoint in code order. A record that fails to
// decode aborts the listing.
func (s *BoltStore) ListSessions() ([]types.SessionRecord, error) {
	var recs []types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var rec types.SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode session %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// DeleteSession removes a checkpoint. Deleting a missing code is not an error.
func (s *BoltStore) DeleteSession(code string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(code))
	})
}
