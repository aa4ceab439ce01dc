package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"juriscalc/internal/scheduler"
	"juriscalc/pkg/platform/sentinel"
)

const scheduleKeyPrefix = "juriscalc:schedule:"

// RedisScheduleStore persists schedule entries in Redis so LastRun survives
// process restarts and is shared across replicas.
type RedisScheduleStore struct {
	client *redis.Client
}

func NewRedisScheduleStore(client *redis.Client) *RedisScheduleStore {
	return &RedisScheduleStore{client: client}
}

func scheduleKey(dataType scheduler.DataType) string {
	return scheduleKeyPrefix + string(dataType)
}

func (s *RedisScheduleStore) List(ctx context.Context) ([]scheduler.Entry, error) {
	out := make([]scheduler.Entry, 0, len(scheduler.AllDataTypes))
	for _, dataType := range scheduler.AllDataTypes {
		entry, err := s.Get(ctx, dataType)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *RedisScheduleStore) Get(ctx context.Context, dataType scheduler.DataType) (*scheduler.Entry, error) {
	raw, err := s.client.Get(ctx, scheduleKey(dataType)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get schedule %s: %w", dataType, err)
	}
	var entry scheduler.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode schedule %s: %w", dataType, err)
	}
	return &entry, nil
}

func (s *RedisScheduleStore) Put(ctx context.Context, entry scheduler.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode schedule %s: %w", entry.DataType, err)
	}
	if err := s.client.Set(ctx, scheduleKey(entry.DataType), raw, 0).Err(); err != nil {
		return fmt.Errorf("put schedule %s: %w", entry.DataType, err)
	}
	return nil
}
