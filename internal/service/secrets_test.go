package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"burn.note/internal/codec"
	"burn.note/internal/models"
	"burn.note/internal/store"
)

type putCall struct {
	id, value string
	ttl       time.Duration
}

// recordingStore wraps a real store and remembers every call.
type recordingStore struct {
	store.Store

	mu    sync.Mutex
	puts  []putCall
	takes int

	putErr  error
	takeErr error
}

func (r *recordingStore) Put(ctx context.Context, id, value string, ttl time.Duration) error {
	r.mu.Lock()
	r.puts = append(r.puts, putCall{id, value, ttl})
	err := r.putErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Store.Put(ctx, id, value, ttl)
}

func (r *recordingStore) Take(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	r.takes++
	err := r.takeErr
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	return r.Store.Take(ctx, id)
}

func newTestSecrets(t *testing.T, opts Options) (*Secrets, *recordingStore) {
	t.Helper()
	mem := store.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })

	rec := &recordingStore{Store: mem}
	return NewSecrets(rec, opts, zap.NewNop()), rec
}

func fixedIDs(ids ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return "", errors.New("out of ids")
		}
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
}

func TestCreateRetrieve_EndToEnd(t *testing.T) {
	svc, _ := newTestSecrets(t, Options{})
	svc.newID = fixedIDs("abc123XYZ0")
	ctx := context.Background()

	id, err := svc.Create(ctx, "hello world", models.KindText, 60)
	require.NoError(t, err)
	assert.Equal(t, "abc123XYZ0", id)

	got, err := svc.Retrieve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &models.Secret{ID: id, Content: "hello world", Kind: models.KindText}, got)

	_, err = svc.Retrieve(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_Validation(t *testing.T) {
	big := "data:application/octet-stream;base64," + strings.Repeat("A", DefaultMaxFileSize)

	tests := []struct {
		name    string
		content string
		kind    models.Kind
		ttl     int64
		wantErr error
	}{
		{"empty text", "", models.KindText, 0, ErrContentRequired},
		{"empty file", "", models.KindFile, 0, ErrContentRequired},
		{"empty without kind", "", "", 60, ErrContentRequired},
		{"file too large", big, models.KindFile, 0, ErrPayloadTooLarge},
		{"unknown kind", "x", models.Kind("video"), 0, ErrInvalidKind},
		{"negative ttl", "x", models.KindText, -5, ErrInvalidTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestSecrets(t, Options{})

			_, err := svc.Create(context.Background(), tt.content, tt.kind, tt.ttl)
			assert.ErrorIs(t, err, tt.wantErr)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Empty(t, rec.puts, "no store write on validation failure")
		})
	}
}

func TestCreate_SizeBoundary(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{MaxFileSize: 64})
	ctx := context.Background()

	_, err := svc.Create(ctx, strings.Repeat("a", 64), models.KindFile, 0)
	require.NoError(t, err)

	_, err = svc.Create(ctx, strings.Repeat("a", 65), models.KindFile, 0)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	// counted in code points, not bytes
	_, err = svc.Create(ctx, strings.Repeat("🔥", 64), models.KindFile, 0)
	require.NoError(t, err)

	// text has no size cap of its own
	_, err = svc.Create(ctx, strings.Repeat("a", 1000), models.KindText, 0)
	require.NoError(t, err)

	assert.Len(t, rec.puts, 3)
}

func TestCreate_TTL(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		in   int64
		want time.Duration
	}{
		{"default", Options{}, 0, time.Hour},
		{"configured default", Options{DefaultTTL: 5 * time.Minute}, 0, 5 * time.Minute},
		{"explicit", Options{}, 86400, 24 * time.Hour},
		{"odd value", Options{}, 7, 7 * time.Second},
		{"clamped", Options{MaxTTL: time.Hour}, 86400, time.Hour},
		{"below max", Options{MaxTTL: time.Hour}, 60, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestSecrets(t, tt.opts)

			_, err := svc.Create(context.Background(), "x", models.KindText, tt.in)
			require.NoError(t, err)
			require.Len(t, rec.puts, 1)
			assert.Equal(t, tt.want, rec.puts[0].ttl)
		})
	}
}

func TestCreate_StoresEncodedPayload(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{})

	_, err := svc.Create(context.Background(), "data:text/plain;base64,aGk=", models.KindFile, 0)
	require.NoError(t, err)
	require.Len(t, rec.puts, 1)

	content, kind, err := codec.Decode(rec.puts[0].value)
	require.NoError(t, err)
	assert.Equal(t, "data:text/plain;base64,aGk=", content)
	assert.Equal(t, models.KindFile, kind)
}

func TestCreate_DefaultsKindToText(t *testing.T) {
	svc, _ := newTestSecrets(t, Options{})
	ctx := context.Background()

	id, err := svc.Create(ctx, "x", "", 0)
	require.NoError(t, err)

	got, err := svc.Retrieve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.KindText, got.Kind)
}

func TestCreate_IDCollision(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{})
	svc.newID = fixedIDs("aaaaaaaaaa", "aaaaaaaaaa", "bbbbbbbbbb")
	ctx := context.Background()

	first, err := svc.Create(ctx, "one", models.KindText, 0)
	require.NoError(t, err)
	second, err := svc.Create(ctx, "two", models.KindText, 0)
	require.NoError(t, err)

	assert.Equal(t, "aaaaaaaaaa", first)
	assert.Equal(t, "bbbbbbbbbb", second)
	assert.Len(t, rec.puts, 3)

	got, err := svc.Retrieve(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Content, "collision must not overwrite")
}

func TestCreate_IDCollisionExhausted(t *testing.T) {
	svc, _ := newTestSecrets(t, Options{})
	svc.newID = fixedIDs("aaaaaaaaaa", "aaaaaaaaaa", "aaaaaaaaaa", "aaaaaaaaaa")
	ctx := context.Background()

	_, err := svc.Create(ctx, "one", models.KindText, 0)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "two", models.KindText, 0)
	assert.ErrorIs(t, err, store.ErrExists)
}

func TestCreate_StoreUnavailable(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{})
	rec.putErr = store.ErrUnavailable

	_, err := svc.Create(context.Background(), "x", models.KindText, 0)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Len(t, rec.puts, 1, "failed writes are not retried")
}

func TestRetrieve_UniformMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := store.NewRedisStore(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rs.Close()

	svc := NewSecrets(rs, Options{}, zap.NewNop())
	ctx := context.Background()

	consumed, err := svc.Create(ctx, "read me", models.KindText, 60)
	require.NoError(t, err)
	_, err = svc.Retrieve(ctx, consumed)
	require.NoError(t, err)

	expired, err := svc.Create(ctx, "too late", models.KindText, 60)
	require.NoError(t, err)
	mr.FastForward(61 * time.Second)

	for _, id := range []string{"never-existed-id", "zzzzzzzzzz", consumed, expired} {
		got, err := svc.Retrieve(ctx, id)
		assert.Nil(t, got)
		assert.Equal(t, ErrNotFound, err, "id %q", id)
	}
}

func TestRetrieve_TTLBoundary(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := store.NewRedisStore(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rs.Close()

	svc := NewSecrets(rs, Options{}, zap.NewNop())
	ctx := context.Background()

	early, err := svc.Create(ctx, "x", models.KindText, 30)
	require.NoError(t, err)
	late, err := svc.Create(ctx, "y", models.KindText, 30)
	require.NoError(t, err)

	mr.FastForward(29 * time.Second)
	_, err = svc.Retrieve(ctx, early)
	require.NoError(t, err)

	mr.FastForward(time.Second)
	_, err = svc.Retrieve(ctx, late)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieve_ConcurrentExactlyOnce(t *testing.T) {
	svc, _ := newTestSecrets(t, Options{})
	ctx := context.Background()

	id, err := svc.Create(ctx, "only once", models.KindText, 0)
	require.NoError(t, err)

	const readers = 20
	results := make(chan error, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Retrieve(ctx, id)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var hits, misses int
	for err := range results {
		switch {
		case err == nil:
			hits++
		case errors.Is(err, ErrNotFound):
			misses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, hits)
	assert.Equal(t, readers-1, misses)
}

func TestRetrieve_CorruptPayload(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{})
	ctx := context.Background()
	require.NoError(t, rec.Store.Put(ctx, "corrupt000", "{not json", time.Minute))

	_, err := svc.Retrieve(ctx, "corrupt000")
	assert.ErrorIs(t, err, codec.ErrCorruptPayload)

	// gone regardless
	_, err = svc.Retrieve(ctx, "corrupt000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieve_StoreUnavailable(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{})
	rec.takeErr = store.ErrUnavailable

	_, err := svc.Retrieve(context.Background(), "abc123XYZ0")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 1, rec.takes)
}

func TestRetrieve_MalformedIDSkipsStore(t *testing.T) {
	svc, rec := newTestSecrets(t, Options{})

	_, err := svc.Retrieve(context.Background(), "../../etc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, rec.takes)
}
