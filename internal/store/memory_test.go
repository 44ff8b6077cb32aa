package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestMemoryStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(time.Hour)
	s.now = clock.Now
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestMemoryStore_TakeOnce(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "abc", "v", time.Minute))

	got, err := s.Take(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = s.Take(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Take(ctx, "never")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s, clock := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", "v", 60*time.Second))
	require.NoError(t, s.Put(ctx, "b", "v", 60*time.Second))

	clock.Advance(59 * time.Second)
	got, err := s.Take(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	clock.Advance(time.Second)
	_, err = s.Take(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PutExisting(t *testing.T) {
	s, clock := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", "first", time.Minute))
	assert.ErrorIs(t, s.Put(ctx, "a", "second", time.Minute), ErrExists)

	// an expired entry does not block reuse of its id
	clock.Advance(2 * time.Minute)
	require.NoError(t, s.Put(ctx, "a", "third", time.Minute))

	got, err := s.Take(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "third", got)
}

func TestMemoryStore_Cleanup(t *testing.T) {
	s, clock := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "short", "v", time.Second))
	require.NoError(t, s.Put(ctx, "long", "v", time.Hour))

	clock.Advance(time.Minute)
	s.cleanup()

	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ConcurrentTake(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "race", "v", time.Minute))

	const readers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "race"); err == nil {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hits)
}
