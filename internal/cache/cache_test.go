package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Price  float64 `json:"price"`
	Symbol string  `json:"symbol"`
}

func TestRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("fundamentals", "AAPL", payload{Price: 190.5, Symbol: "AAPL"}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var got payload
	age, ok := s2.Get("fundamentals", "AAPL", &got)
	require.True(t, ok)
	assert.Equal(t, payload{Price: 190.5, Symbol: "AAPL"}, got)
	assert.Less(t, age, time.Minute)
}

func TestStagedEntryReadableBeforeFlush(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("fundamentals", "TSLA", payload{Price: 250}))

	var got payload
	_, ok := s.Get("fundamentals", "TSLA", &got)
	require.True(t, ok)
	assert.Equal(t, 250.0, got.Price)
}

func TestAgeReflectsInjectedClock(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	s.SetNow(func() time.Time { return base })
	require.NoError(t, s.Put("fundamentals", "NVDA", payload{Price: 120}))

	// 25 hours later the entry is still physically present; the consumer
	// compares the age against its own TTL to decide staleness.
	s.SetNow(func() time.Time { return base.Add(25 * time.Hour) })
	var got payload
	age, ok := s.Get("fundamentals", "NVDA", &got)
	require.True(t, ok)
	assert.Equal(t, 25*time.Hour, age)
	assert.Greater(t, age, 24*time.Hour, "caller treats this as a miss")
}

func TestMissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	var got payload
	_, ok := s.Get("fundamentals", "NOPE", &got)
	assert.False(t, ok)
}

func TestCorruptStoreStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, []byte("not a bolt database at all"), 0o600))

	s, err := Open(path)
	require.NoError(t, err, "corrupt store must be replaced, not surfaced")
	defer s.Close()

	var got payload
	_, ok := s.Get("fundamentals", "AAPL", &got)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("universe", "all", []string{"AAPL"}))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Clear("universe"))

	var got []string
	_, ok := s.Get("universe", "all", &got)
	assert.False(t, ok)
}
