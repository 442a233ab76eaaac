package blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no blob exists for a key.
var ErrNotFound = errors.New("blob not found")

// Store is a Pebble-backed content store.
type Store struct {
	db *pebble.DB
}

// Open creates or opens the blob database under dataDir.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("blob store requires a data directory")
	}
	db, err := pebble.Open(filepath.Join(dataDir, "blobs"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores raw bytes under a fresh key and returns the key.
func (s *Store) Put(data []byte) (string, error) {
	key := uuid.NewString()
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return key, nil
}

// PutJSON marshals value and stores it under a fresh key.
func (s *Store) PutJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal blob: %w", err)
	}
	return s.Put(data)
}

// Get returns the bytes stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	defer closer.Close()

	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// GetJSON unmarshals the blob stored under key into out.
func (s *Store) GetJSON(key string, out any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
