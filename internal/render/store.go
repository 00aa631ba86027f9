package render

import (
	"context"
	"errors"
	"sync"

	"github.com/reelforge/api/internal/model"
)

var ErrJobNotFound = errors.New("render job not found")

// JobStore keeps render jobs for lookup by id. Implementations must return
// copies so a caller never observes a job mutating under it.
type JobStore interface {
	Save(ctx context.Context, job *model.RenderJob) error
	Get(ctx context.Context, id string) (*model.RenderJob, error)
}

// MemoryJobStore is a process-wide job map
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.RenderJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*model.RenderJob)}
}

func (s *MemoryJobStore) Save(_ context.Context, job *model.RenderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*model.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}
