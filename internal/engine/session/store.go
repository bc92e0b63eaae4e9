package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"portal/internal/platform/auth"
)

// Store holds the credential pair a browser session presents. It plays the
// part of client-side storage: Load returns nil, nil when the session has no
// credentials.
type Store interface {
	Load(ctx context.Context, sessionID string) (*auth.TokenPair, error)
	Save(ctx context.Context, sessionID string, pair *auth.TokenPair) error
	Clear(ctx context.Context, sessionID string) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	pairs map[string]auth.TokenPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pairs: make(map[string]auth.TokenPair)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*auth.TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pair, ok := s.pairs[sessionID]
	if !ok {
		return nil, nil
	}
	return &pair, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, pair *auth.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[sessionID] = *pair
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pairs, sessionID)
	return nil
}

const redisKeyPrefix = "portal:session:"

// RedisStore keeps credential pairs as JSON values that expire together with
// the refresh credential.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*auth.TokenPair, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var pair auth.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, pair *auth.TokenPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+sessionID, data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}
