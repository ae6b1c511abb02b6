package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studio/internal/domain"
)

const redisKeyPrefix = "studio:snapshot:"

// RedisStore keeps snapshots in redis hashes with a TTL, so expiry replaces
// explicit purging.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a redis client. A zero ttl disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("snapshot: exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	key := redisKey(rec.SessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"data", rec.Data,
		"updated_at", rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(sessionID)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: load: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return Record{}, domain.ErrNotFound
	}
	rec := Record{SessionID: sessionID, Data: []byte(data)}
	if raw, ok := fields["updated_at"]; ok {
		if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			rec.UpdatedAt = ts
		}
	}
	return rec, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Meta, error) {
	var out []Meta
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("snapshot: list: %w", err)
		}
		m := Meta{
			SessionID: key[len(redisKeyPrefix):],
			Size:      len(fields["data"]),
		}
		if raw, ok := fields["updated_at"]; ok {
			if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
				m.UpdatedAt = ts
			}
		}
		out = append(out, m)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	return out, nil
}

// Purge is a no-op for redis; the per-key TTL already expires stale
// snapshots.
func (s *RedisStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
