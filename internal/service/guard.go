package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunGuard admits at most one generation run per timeline. The holder is
// the asynq job that will execute the run.
type RunGuard interface {
	Acquire(ctx context.Context, timelineID, jobID string) (bool, error)
	Release(ctx context.Context, timelineID string) error
	Active(ctx context.Context, timelineID string) (bool, error)
}

// MemoryRunGuard is a process-local RunGuard
type MemoryRunGuard struct {
	mu   sync.Mutex
	runs map[string]string
}

func NewMemoryRunGuard() *MemoryRunGuard {
	return &MemoryRunGuard{runs: make(map[string]string)}
}

func (g *MemoryRunGuard) Acquire(_ context.Context, timelineID, jobID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.runs[timelineID]; ok {
		return false, nil
	}
	g.runs[timelineID] = jobID
	return true, nil
}

func (g *MemoryRunGuard) Release(_ context.Context, timelineID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.runs, timelineID)
	return nil
}

func (g *MemoryRunGuard) Active(_ context.Context, timelineID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.runs[timelineID]
	return ok, nil
}

// RedisRunGuard shares the guard between API and worker processes. The key
// expires so a crashed worker cannot lock a timeline forever.
type RedisRunGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRunGuard(rdb *redis.Client, ttl time.Duration) *RedisRunGuard {
	return &RedisRunGuard{rdb: rdb, ttl: ttl}
}

func runKey(timelineID string) string { return fmt.Sprintf("run:%s", timelineID) }

func (g *RedisRunGuard) Acquire(ctx context.Context, timelineID, jobID string) (bool, error) {
	return g.rdb.SetNX(ctx, runKey(timelineID), jobID, g.ttl).Result()
}

func (g *RedisRunGuard) Release(ctx context.Context, timelineID string) error {
	return g.rdb.Del(ctx, runKey(timelineID)).Err()
}

func (g *RedisRunGuard) Active(ctx context.Context, timelineID string) (bool, error) {
	n, err := g.rdb.Exists(ctx, runKey(timelineID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
