package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ConnSource hands out redis connections. *redis.Pool satisfies it.
type ConnSource interface {
	Get() redis.Conn
}

// RedisBackend stores drafts as plain string keys with an expiry.
type RedisBackend struct {
	conns ConnSource
}

// NewRedisPool returns a connection pool dialing addr.
func NewRedisPool(addr string, maxIdle int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 4 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisBackend wraps conns.
func NewRedisBackend(conns ConnSource) *RedisBackend {
	return &RedisBackend{conns: conns}
}

func (b *RedisBackend) Get(_ context.Context, key string) ([]byte, error) {
	conn := b.conns.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("draft: redis get: %w", err)
	}
	return data, nil
}

func (b *RedisBackend) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	conn := b.conns.Get()
	defer conn.Close()

	var err error
	if secs := int64(ttl / time.Second); secs > 0 {
		_, err = conn.Do("SET", key, data, "EX", secs)
	} else {
		_, err = conn.Do("SET", key, data)
	}
	if err != nil {
		return fmt.Errorf("draft: redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(_ context.Context, key string) error {
	conn := b.conns.Get()
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("draft: redis del: %w", err)
	}
	return nil
}
