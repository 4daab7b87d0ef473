package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testStore 需要真实 Redis，未配置 REDIS_TEST_URL 时跳过
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set, skipping Redis cache tests")
	}
	s, err := NewStoreFromURL(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "stats:test:missing")
	require.NoError(t, err)
	require.False(t, ok, "unexpected hit for missing key")

	require.NoError(t, s.Set(ctx, "stats:test:k", []byte(`{"total":5}`), time.Minute))

	data, ok, err := s.Get(ctx, "stats:test:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"total":5}`), data)
}

func TestSetExpiry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "stats:test:ttl", []byte("x"), 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)

	_, ok, err := s.Get(ctx, "stats:test:ttl")
	require.NoError(t, err)
	require.False(t, ok, "key should have expired")
}
