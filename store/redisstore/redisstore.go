// Package redisstore backs store.SessionStore with a Redis client,
// storing each address's serialized session record as a single
// string value. Sessions are caller-managed state, not cache entries,
// so keys are written with no TTL.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/session"
)

// Store is a store.SessionStore backed by Redis.
type Store struct {
	client *redis.Client
}

// New dials addr and returns a Store, failing fast if the server is
// unreachable.
func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an already-constructed Redis client.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func sessionKey(addr protocol.Address) string {
	return "session:" + addr.String()
}

// LoadSession returns nil, nil if no record has been stored for addr.
func (s *Store) LoadSession(ctx context.Context, addr protocol.Address) (*session.Record, error) {
	raw, err := s.client.Get(ctx, sessionKey(addr)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: load %s: %w", addr, err)
	}
	record, err := session.Deserialize(raw)
	if err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", addr, err)
	}
	return record, nil
}

// StoreSession overwrites the record stored for addr.
func (s *Store) StoreSession(ctx context.Context, addr protocol.Address, record *session.Record) error {
	data, err := record.Serialize()
	if err != nil {
		return fmt.Errorf("redisstore: encode %s: %w", addr, err)
	}
	if err := s.client.Set(ctx, sessionKey(addr), data, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: store %s: %w", addr, err)
	}
	return nil
}
