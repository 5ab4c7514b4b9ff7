package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/medgrove/medai-web-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB persists the saved-session collection using a BoltDB backend. The
// collection is append-only: saving never overwrites a prior save, and
// entries come back in the order they were written.
type BoltDB struct {
	db *bolt.DB
}

const savedSessionsBucket = "saved_sessions"

// NewBoltDB creates a new BoltDB instance with the specified file path. It
// initializes the database with the required bucket and returns an error if
// the database cannot be opened or initialized. The database file is created
// with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(savedSessionsBucket))
		return err
	})

	return BoltDB{db: db}, err
}

// SaveSession appends one transcript snapshot to the collection. Keys come
// from the bucket sequence, so repeated saves of the same session id remain
// distinct entries.
func (b BoltDB) SaveSession(_ context.Context, saved models.SavedSession) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(savedSessionsBucket))
		if bk == nil {
			return fmt.Errorf("bucket %s is missing", savedSessionsBucket)
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("failed to marshal saved session: %w", err)
		}

		key := fmt.Sprintf("%08d-%s", seq, saved.SessionID)
		return bk.Put([]byte(key), v)
	})
}

// SavedSessions retrieves the whole collection in reverse chronological
// order (most recent save first).
func (b BoltDB) SavedSessions(context.Context) ([]models.SavedSession, error) {
	var sessions []models.SavedSession
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(savedSessionsBucket))
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var saved models.SavedSession
			if err := json.Unmarshal(v, &saved); err != nil {
				return fmt.Errorf("failed to unmarshal saved session: %w", err)
			}
			sessions = append(sessions, saved)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(sessions)
	return sessions, nil
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
