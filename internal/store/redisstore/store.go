package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb     *redis.Client
	lockTTL time.Duration
}

// New connects and pings. lockTTL bounds how long a crashed instance can hold
// a turn lock.
func New(addr, password string, db int, lockTTL time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Store{rdb: rdb, lockTTL: lockTTL}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

// Get reports found=false for a missing key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}
