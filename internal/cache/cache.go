package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

// Store is a durable keyed cache. Entries carry their own fetch timestamp;
// expiry is the caller's concern, evaluated against a TTL of its choosing.
//
// Puts are staged in memory and committed in a single transaction every
// flushEvery insertions, bounding write amplification while keeping each
// commit crash-atomic.
type Store struct {
	db         *bolt.DB
	now        func() time.Time
	flushEvery int

	mu      sync.Mutex
	pending map[string]map[string]entry
	staged  int

	logger zerolog.Logger
}

type entry struct {
	Value     json.RawMessage `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Open opens (or creates) the store at path. A corrupt store is discarded
// and replaced with an empty one rather than surfaced as an error.
func Open(path string) (*Store, error) {
	logger := log.With().Str("component", "cache").Logger()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("cache unreadable, starting empty")
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, rmErr
		}
		db, err = bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, err
		}
	}

	return &Store{
		db:         db,
		now:        time.Now,
		flushEvery: 100,
		pending:    make(map[string]map[string]entry),
		logger:     logger,
	}, nil
}

// SetNow replaces the clock, used by tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get decodes the cached value for key into out and returns its age.
// ok is false when the key has never been written.
func (s *Store) Get(bucket, key string, out any) (age time.Duration, ok bool) {
	s.mu.Lock()
	if e, found := s.pending[bucket][key]; found {
		now := s.now()
		s.mu.Unlock()
		if err := json.Unmarshal(e.Value, out); err != nil {
			return 0, false
		}
		return now.Sub(e.FetchedAt), true
	}
	now := s.now()
	s.mu.Unlock()

	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return 0, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.logger.Debug().Str("key", key).Msg("dropping undecodable cache entry")
		return 0, false
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return 0, false
	}
	return now.Sub(e.FetchedAt), true
}

// Put stages value under key, stamped with the current clock. The entry is
// readable immediately; durability comes with the next batched flush.
func (s *Store) Put(bucket, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.pending[bucket] == nil {
		s.pending[bucket] = make(map[string]entry)
	}
	s.pending[bucket][key] = entry{Value: raw, FetchedAt: s.now()}
	s.staged++
	needFlush := s.staged >= s.flushEvery
	s.mu.Unlock()

	if needFlush {
		return s.Flush()
	}
	return nil
}

// Flush commits all staged entries in one transaction.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.staged == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := s.pending
	s.pending = make(map[string]map[string]entry)
	s.staged = 0
	s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		for bucket, entries := range pending {
			b, err := tx.CreateBucketIfNotExists([]byte(bucket))
			if err != nil {
				return err
			}
			for key, e := range entries {
				raw, err := json.Marshal(e)
				if err != nil {
					return err
				}
				if err := b.Put([]byte(key), raw); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("error saving cache")
	}
	return err
}

// Clear removes every entry in the given bucket, staged or durable.
func (s *Store) Clear(bucket string) error {
	s.mu.Lock()
	s.staged -= len(s.pending[bucket])
	delete(s.pending, bucket)
	s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucket)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(bucket))
	})
}

// Close flushes staged entries and closes the underlying store.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}
