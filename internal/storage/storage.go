package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/websearch/pkg/logger"
)

var bucketName = []byte("history")

// Entry records the metadata of one search invocation. Result payloads are
// never persisted, only what was asked and how much came back.
type Entry struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Provider    string    `json:"provider"`
	ResultCount int       `json:"result_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryStore provides persistent storage for search history using BBolt
type HistoryStore struct {
	db *bbolt.DB
}

// NewHistoryStore creates a new history store with the given database path
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	// Create bucket if not exists
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("history store initialized", zap.String("path", path))
	return &HistoryStore{db: db}, nil
}

// Record saves a search invocation entry. Keys are timestamp-prefixed so
// cursor order is chronological.
func (s *HistoryStore) Record(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%d_%s", entry.Timestamp.UnixNano(), entry.ID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(key), data)
	})
}

// Recent returns up to n entries, newest first
func (s *HistoryStore) Recent(n int) ([]Entry, error) {
	entries := make([]Entry, 0, n)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Clear removes all history entries
func (s *HistoryStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
}

// Close closes the database connection
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
