package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a go-redis client.  Every call is
// bounded by Timeout so a hung connection surfaces as ErrUnavailable
// instead of pinning the request goroutine.
type RedisStore struct {
	rdb     redis.UniversalClient
	Timeout time.Duration
}

// NewRedisStore wraps an existing client.  A zero timeout falls back to
// DefaultTimeout.
func NewRedisStore(rdb redis.UniversalClient, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RedisStore{rdb: rdb, Timeout: timeout}
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.Timeout)
}

// classify maps go-redis errors onto the package sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrNotFound
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return classify(s.rdb.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// Take uses GETDEL so two concurrent consumers of the same token cannot both
// observe it.
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	b, err := s.rdb.GetDel(ctx, key).Bytes()
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return classify(s.rdb.Del(ctx, keys...).Err())
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ok, err := s.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		return classify(err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) SAdd(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return classify(s.rdb.SAdd(ctx, set, args...).Err())
}

func (s *RedisStore) SMembers(ctx context.Context, set string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	members, err := s.rdb.SMembers(ctx, set).Result()
	if err != nil {
		return nil, classify(err)
	}
	return members, nil
}

func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return nil, classify(err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// updateAbort carries an error returned by the caller's UpdateFunc through
// the WATCH callback so it is not mistaken for a transport failure.
type updateAbort struct{ err error }

func (u updateAbort) Error() string { return u.err.Error() }

// Update runs fn inside WATCH/MULTI/EXEC.  If the key changes after it was
// read, EXEC is discarded and ErrConflict is returned.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return updateAbort{err: err}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txf, key)
	var abort updateAbort
	if errors.As(err, &abort) {
		return abort.err
	}
	return classify(err)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return classify(s.rdb.Ping(ctx).Err())
}
