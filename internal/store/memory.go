package store

import (
	"context"
	"sort"
	"sync"

	"github.com/reelforge/api/internal/model"
)

// MemoryStore keeps timelines in a process-local map
type MemoryStore struct {
	mu        sync.RWMutex
	timelines map[string]*model.Timeline
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{timelines: make(map[string]*model.Timeline)}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Create(_ context.Context, tl *model.Timeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timelines[tl.ID]; ok {
		return ErrDuplicate
	}
	s.timelines[tl.ID] = tl.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tl, ok := s.timelines[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tl.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, tl *model.Timeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timelines[tl.ID]; !ok {
		return ErrNotFound
	}
	s.timelines[tl.ID] = tl.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timelines[id]; !ok {
		return ErrNotFound
	}
	delete(s.timelines, id)
	return nil
}

func (s *MemoryStore) List(context.Context) ([]model.TimelineSummary, error) {
	s.mu.RLock()
	out := make([]model.TimelineSummary, 0, len(s.timelines))
	for _, tl := range s.timelines {
		out = append(out, tl.Summary())
	}
	s.mu.RUnlock()

	sortSummaries(out)
	return out, nil
}

// sortSummaries orders most recently updated first
func sortSummaries(list []model.TimelineSummary) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
