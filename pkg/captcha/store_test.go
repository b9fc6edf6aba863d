package captcha

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "id-1", "AB23", time.Minute))
	code, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "AB23", code)

	require.NoError(t, s.Delete(ctx, "id-1"))
	_, err = s.Get(ctx, "id-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithStoreClock(clock.Now))

	require.NoError(t, s.Set(ctx, "id-1", "AB23", 5*time.Minute))
	clock.Advance(5 * time.Minute)

	_, err := s.Get(ctx, "id-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithStoreClock(clock.Now))

	require.NoError(t, s.Set(ctx, "short", "AAAA", time.Minute))
	require.NoError(t, s.Set(ctx, "long", "BBBB", time.Hour))
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, s.SweepExpired())
	assert.Equal(t, 1, s.Len())
	code, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "BBBB", code)
}

func TestMemoryStore_BoundedSize(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithMaxEntries(2), WithStoreClock(clock.Now))

	require.NoError(t, s.Set(ctx, "first", "AAAA", time.Minute))
	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "second", "BBBB", time.Minute))
	clock.Advance(time.Second)
	require.NoError(t, s.Set(ctx, "third", "CCCC", time.Minute))

	assert.Equal(t, 2, s.Len())
	_, err := s.Get(ctx, "first")
	assert.ErrorIs(t, err, ErrNotFound, "entry closest to expiry is evicted")
	_, err = s.Get(ctx, "third")
	assert.NoError(t, err)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, "")
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestRedis(t)

	require.NoError(t, s.Set(ctx, "id-1", "XY45", time.Minute))
	assert.True(t, mr.Exists("captcha:id-1"))

	code, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "XY45", code)

	require.NoError(t, s.Delete(ctx, "id-1"))
	_, err = s.Get(ctx, "id-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestRedis(t)

	require.NoError(t, s.Set(ctx, "id-1", "XY45", 5*time.Minute))
	assert.Equal(t, 5*time.Minute, mr.TTL("captcha:id-1"))

	mr.FastForward(5 * time.Minute)
	_, err := s.Get(ctx, "id-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestRedis(t)
	mr.Close()

	_, err := s.Get(ctx, "id-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_Consume(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			_, s := newTestRedis(t)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.Set(ctx, "id-1", "XY45", time.Minute))

			_, err := s.Consume(ctx, "missing", "XY45")
			assert.ErrorIs(t, err, ErrNotFound)

			ok, err := s.Consume(ctx, "id-1", "XY46")
			require.NoError(t, err)
			assert.False(t, ok)
			_, err = s.Get(ctx, "id-1")
			require.NoError(t, err, "a wrong answer keeps the entry")

			ok, err = s.Consume(ctx, "id-1", "xy45")
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = s.Consume(ctx, "id-1", "XY45")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ConsumeConcurrent(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			_, s := newTestRedis(t)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.Set(ctx, "id-1", "XY45", time.Minute))

			var (
				wg       sync.WaitGroup
				accepted atomic.Int32
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if ok, _ := s.Consume(ctx, "id-1", "XY45"); ok {
						accepted.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), accepted.Load())
		})
	}
}

func TestRedisStore_ConsumeUnreachable(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestRedis(t)
	mr.Close()

	_, err := s.Consume(ctx, "id-1", "XY45")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
