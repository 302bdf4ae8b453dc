package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore is a Checkpointer backed by Redis. Checkpoints are stored
// as JSON blobs under `checkpoint:<thread>:<id>`, with a per-thread
// sorted set indexing ids by creation time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects to the Redis at url and verifies the
// connection. A zero ttl keeps checkpoints until deleted.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "checkpoint-redis").Logger(),
	}, nil
}

func checkpointKey(threadID, id string) string {
	return "checkpoint:" + threadID + ":" + id
}

func threadIndexKey(threadID string) string {
	return "checkpoint-index:" + threadID
}

const threadsKey = "checkpoint-threads"

// Put stores a checkpoint.
func (s *RedisStore) Put(ctx context.Context, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, checkpointKey(cp.ThreadID, cp.ID), data, s.ttl)
	pipe.ZAdd(ctx, threadIndexKey(cp.ThreadID), redis.Z{
		Score:  float64(cp.CreatedAt.UnixNano()),
		Member: cp.ID,
	})
	pipe.SAdd(ctx, threadsKey, cp.ThreadID)
	if s.ttl > 0 {
		pipe.Expire(ctx, threadIndexKey(cp.ThreadID), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

// Get returns a specific checkpoint of a thread.
func (s *RedisStore) Get(ctx context.Context, threadID, id string) (Checkpoint, error) {
	data, err := s.client.Get(ctx, checkpointKey(threadID, id)).Result()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Latest returns the most recent checkpoint of a thread.
func (s *RedisStore) Latest(ctx context.Context, threadID string) (Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, threadIndexKey(threadID), 0, 0).Result()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read index: %w", err)
	}
	if len(ids) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return s.Get(ctx, threadID, ids[0])
}

// List returns a thread's checkpoints, newest first. Index entries
// whose blobs have expired are skipped.
func (s *RedisStore) List(ctx context.Context, threadID string) ([]Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, threadIndexKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	checkpoints := make([]Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp, err := s.Get(ctx, threadID, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}

// Delete removes a single checkpoint.
func (s *RedisStore) Delete(ctx context.Context, threadID, id string) error {
	removed, err := s.client.Del(ctx, checkpointKey(threadID, id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if err := s.client.ZRem(ctx, threadIndexKey(threadID), id).Err(); err != nil {
		return fmt.Errorf("failed to update index: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteThread removes all checkpoints of a thread.
func (s *RedisStore) DeleteThread(ctx context.Context, threadID string) error {
	ids, err := s.client.ZRange(ctx, threadIndexKey(threadID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, checkpointKey(threadID, id))
	}
	pipe.Del(ctx, threadIndexKey(threadID))
	pipe.SRem(ctx, threadsKey, threadID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete thread checkpoints: %w", err)
	}
	return nil
}

// Threads returns the ids of all threads with checkpoints, sorted.
func (s *RedisStore) Threads(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, threadsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
