package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/render"
)

const (
	timelineIndexKey = "timelines:index"
	jobTTL           = 24 * time.Hour
)

func timelineKey(id string) string { return fmt.Sprintf("timeline:%s", id) }

func jobKey(id string) string { return fmt.Sprintf("job:%s", id) }

// RedisStore keeps timelines as JSON documents with a sorted set index by
// update time
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Create(ctx context.Context, tl *model.Timeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, timelineKey(tl.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create timeline: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return s.index(ctx, tl)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Timeline, error) {
	data, err := s.rdb.Get(ctx, timelineKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	var tl model.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("decode timeline %s: %w", id, err)
	}
	return &tl, nil
}

func (s *RedisStore) Update(ctx context.Context, tl *model.Timeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	ok, err := s.rdb.SetXX(ctx, timelineKey(tl.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("update timeline: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return s.index(ctx, tl)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, timelineKey(id))
		pipe.ZRem(ctx, timelineIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]model.TimelineSummary, error) {
	ids, err := s.rdb.ZRevRange(ctx, timelineIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	out := make([]model.TimelineSummary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = timelineKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry outlived its document
			continue
		}
		var tl model.Timeline
		if err := json.Unmarshal([]byte(raw), &tl); err != nil {
			continue
		}
		out = append(out, tl.Summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *RedisStore) index(ctx context.Context, tl *model.Timeline) error {
	err := s.rdb.ZAdd(ctx, timelineIndexKey, redis.Z{
		Score:  float64(tl.UpdatedAt.UnixMilli()),
		Member: tl.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index timeline: %w", err)
	}
	return nil
}

// RedisJobStore keeps render jobs for 24 hours, like every other background
// job in the service
type RedisJobStore struct {
	rdb *redis.Client
}

func NewRedisJobStore(rdb *redis.Client) *RedisJobStore {
	return &RedisJobStore{rdb: rdb}
}

func (s *RedisJobStore) Save(ctx context.Context, job *model.RenderJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*model.RenderJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, render.ErrJobNotFound
		}
		return nil, err
	}
	var job model.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
