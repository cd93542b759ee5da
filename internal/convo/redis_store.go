package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "ezhishi:session:"

const scanBatch = 100

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Metrics  *metrics.Metrics
}

// RedisStore keeps sessions as JSON strings under Prefix+id. Every Save
// refreshes the key's TTL, so expiry is idle-based and enforced by Redis.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStore(client, cfg), nil
}

func newRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, metrics: cfg.Metrics}
}

// Get implements SessionStore.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, domerrors.ErrNotFound)
	}
	if err != nil {
		s.metrics.RecordSessionStoreError("get")
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.metrics.RecordSessionStoreError("decode")
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Entities == nil {
		sess.Entities = make(map[string]string)
	}
	return &sess, nil
}

// Save implements SessionStore.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return domerrors.NewValidationError("sessionId", "must not be empty")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.prefix+sess.ID, data, s.ttl).Err(); err != nil {
		s.metrics.RecordSessionStoreError("save")
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements SessionStore.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		s.metrics.RecordSessionStoreError("delete")
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Len implements SessionStore by scanning the key prefix.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		s.metrics.RecordSessionStoreError("scan")
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	s.metrics.SetActiveSessions(n)
	return n, nil
}

// Range implements SessionStore. Keys that expire between the scan and the
// read are skipped.
func (s *RedisStore) Range(ctx context.Context, fn func(*Session) bool) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()[len(s.prefix):]
		sess, err := s.Get(ctx, id)
		if domerrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if !fn(sess) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		s.metrics.RecordSessionStoreError("scan")
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
