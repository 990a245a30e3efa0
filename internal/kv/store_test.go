package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Second), mr
}

// stores returns every implementation so the shared behaviour is checked
// against both.
func stores(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "project:WS-1", []byte(`{"id":"WS-1"}`), 0))
			got, err := s.Get(ctx, "project:WS-1")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"WS-1"}`, string(got))

			require.NoError(t, s.Delete(ctx, "project:WS-1"))
			_, err = s.Get(ctx, "project:WS-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SetNX(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ok, err := s.SetNX(ctx, "k", []byte("a"), 0)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.SetNX(ctx, "k", []byte("b"), 0)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "a", string(got))
		})
	}
}

func TestStore_TakeIsSingleUse(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "reset:abc", []byte("payload"), time.Hour))

			got, err := s.Take(ctx, "reset:abc")
			require.NoError(t, err)
			assert.Equal(t, "payload", string(got))

			_, err = s.Take(ctx, "reset:abc")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SetMembershipAndScan(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SAdd(ctx, "projects", "WS-A", "WS-B"))
			require.NoError(t, s.SAdd(ctx, "projects", "WS-A"))

			members, err := s.SMembers(ctx, "projects")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"WS-A", "WS-B"}, members)

			require.NoError(t, s.Set(ctx, "project:WS-A", []byte("a"), 0))
			require.NoError(t, s.Set(ctx, "project:WS-B", []byte("b"), 0))
			require.NoError(t, s.Set(ctx, "magic_token:WS-A", []byte("x"), 0))

			keys, err := s.ScanPrefix(ctx, "project:")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"project:WS-A", "project:WS-B"}, keys)
		})
	}
}

func TestStore_Update(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := s.Update(ctx, "absent", func(cur []byte) ([]byte, error) { return cur, nil })
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "counter", []byte("1"), 0))
			require.NoError(t, s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
				return append(cur, '1'), nil
			}))
			got, err := s.Get(ctx, "counter")
			require.NoError(t, err)
			assert.Equal(t, "11", string(got))

			boom := errors.New("boom")
			err = s.Update(ctx, "counter", func([]byte) ([]byte, error) { return nil, boom })
			assert.ErrorIs(t, err, boom)
			got, err = s.Get(ctx, "counter")
			require.NoError(t, err)
			assert.Equal(t, "11", string(got))
		})
	}
}

func TestRedisStore_UpdateConflict(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "project:WS-1", []byte("v1"), 0))

	err := s.Update(ctx, "project:WS-1", func(cur []byte) ([]byte, error) {
		// another writer commits between our read and our write
		require.NoError(t, mr.Set("project:WS-1", "v-other"))
		return []byte("v2"), nil
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.Get(ctx, "project:WS-1")
	require.NoError(t, err)
	assert.Equal(t, "v-other", string(got))
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "magic_session:WS-1:h", []byte("1"), 5*time.Minute))

	mr.FastForward(4 * time.Minute)
	_, err := s.Get(ctx, "magic_session:WS-1:h")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "magic_session:WS-1:h")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	err := s.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.Get(context.Background(), "project:WS-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "reset:h", []byte("r"), time.Hour))
	now = now.Add(59 * time.Minute)
	_, err := s.Get(ctx, "reset:h")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "reset:h")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "magic_token:WS-1", []byte("d"), 0))
	require.NoError(t, s.Expire(ctx, "magic_token:WS-1", time.Minute))
	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "magic_token:WS-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
