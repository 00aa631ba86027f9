package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reelforge/api/internal/consistency"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/routing"
	"github.com/reelforge/api/internal/store"
	"github.com/reelforge/api/internal/timeline"
)

// ModelRegistry is the registry view the timeline service needs
type ModelRegistry interface {
	Lookup(id string) (model.ModelCapability, bool)
	DefaultModel() model.ModelCapability
}

// TimelineService owns timeline editing. Every mutation is a locked
// read-modify-write against the store, and mutations are refused while a
// generation run holds the timeline.
type TimelineService struct {
	store    store.TimelineStore
	registry ModelRegistry
	router   *routing.Engine
	splitter *routing.Splitter
	checker  *consistency.Checker
	guard    RunGuard
	logger   *slog.Logger

	locks sync.Map
}

func NewTimelineService(
	st store.TimelineStore,
	registry ModelRegistry,
	router *routing.Engine,
	splitter *routing.Splitter,
	checker *consistency.Checker,
	guard RunGuard,
	logger *slog.Logger,
) *TimelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimelineService{
		store:    st,
		registry: registry,
		router:   router,
		splitter: splitter,
		checker:  checker,
		guard:    guard,
		logger:   logger.With("component", "timeline_service"),
	}
}

func (s *TimelineService) lock(id string) func() {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// mutate applies fn under the timeline lock and persists the result
func (s *TimelineService) mutate(ctx context.Context, id string, fn func(tl *model.Timeline) error) (*model.Timeline, error) {
	if err := s.ensureIdle(ctx, id); err != nil {
		return nil, err
	}
	unlock := s.lock(id)
	defer unlock()

	tl, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(tl); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, tl); err != nil {
		return nil, err
	}
	return tl, nil
}

func (s *TimelineService) ensureIdle(ctx context.Context, id string) error {
	active, err := s.guard.Active(ctx, id)
	if err != nil {
		return fmt.Errorf("check run guard: %w", err)
	}
	if active {
		return ErrRunInFlight
	}
	return nil
}

func (s *TimelineService) Create(ctx context.Context, req *model.CreateTimelineRequest) (*model.Timeline, error) {
	name, err := timeline.CleanName(req.Name)
	if err != nil {
		return nil, err
	}
	tl := timeline.New(name, req.Resolution, req.Style, s.registry.DefaultModel().ID)
	tl.Description = req.Description
	tl.Tags = append([]string(nil), req.Tags...)
	if err := s.store.Create(ctx, tl); err != nil {
		return nil, err
	}
	s.logger.Info("timeline created", "timeline_id", tl.ID)
	return tl, nil
}

func (s *TimelineService) Get(ctx context.Context, id string) (*model.Timeline, error) {
	return s.store.Get(ctx, id)
}

func (s *TimelineService) List(ctx context.Context) ([]model.TimelineSummary, error) {
	return s.store.List(ctx)
}

func (s *TimelineService) Delete(ctx context.Context, id string) error {
	if err := s.ensureIdle(ctx, id); err != nil {
		return err
	}
	unlock := s.lock(id)
	defer unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.locks.Delete(id)
	return nil
}

// Save persists a timeline produced outside the editing API, such as a
// generation run writing back its progress
func (s *TimelineService) Save(ctx context.Context, tl *model.Timeline) error {
	unlock := s.lock(tl.ID)
	defer unlock()
	return s.store.Update(ctx, tl)
}

func (s *TimelineService) UpdateMeta(ctx context.Context, id string, patch model.TimelineMetaPatch) (*model.Timeline, error) {
	return s.mutate(ctx, id, func(tl *model.Timeline) error {
		return timeline.UpdateMeta(tl, patch)
	})
}

func (s *TimelineService) AddSegment(ctx context.Context, id string, req *model.AddSegmentRequest) (model.Segment, error) {
	position := -1
	if req.Position != nil {
		position = *req.Position
	}
	var seg model.Segment
	_, err := s.mutate(ctx, id, func(tl *model.Timeline) error {
		var err error
		seg, err = timeline.AddSegment(tl, req.SegmentInput, position)
		return err
	})
	return seg, err
}

func (s *TimelineService) UpdateSegment(ctx context.Context, id string, segmentID int, patch model.SegmentPatch) (model.Segment, error) {
	var seg model.Segment
	_, err := s.mutate(ctx, id, func(tl *model.Timeline) error {
		var err error
		seg, err = timeline.UpdateSegment(tl, segmentID, patch)
		return err
	})
	return seg, err
}

func (s *TimelineService) DuplicateSegment(ctx context.Context, id string, segmentID int) (model.Segment, error) {
	var seg model.Segment
	_, err := s.mutate(ctx, id, func(tl *model.Timeline) error {
		var err error
		seg, err = timeline.DuplicateSegment(tl, segmentID)
		return err
	})
	return seg, err
}

func (s *TimelineService) RemoveSegment(ctx context.Context, id string, segmentID int) (*model.Timeline, error) {
	return s.mutate(ctx, id, func(tl *model.Timeline) error {
		return timeline.RemoveSegment(tl, segmentID)
	})
}

func (s *TimelineService) MoveSegment(ctx context.Context, id string, segmentID, index int) (*model.Timeline, error) {
	return s.mutate(ctx, id, func(tl *model.Timeline) error {
		return timeline.MoveSegment(tl, segmentID, index)
	})
}

func (s *TimelineService) Reorder(ctx context.Context, id string, segmentIDs []int) (*model.Timeline, error) {
	return s.mutate(ctx, id, func(tl *model.Timeline) error {
		return timeline.Reorder(tl, segmentIDs)
	})
}

// Routing returns the advisory decision for every segment
func (s *TimelineService) Routing(ctx context.Context, id string) ([]model.RoutingDecision, error) {
	tl, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.router.DecideTimeline(tl), nil
}

// SegmentRouting returns the decision for one segment in its current position
func (s *TimelineService) SegmentRouting(ctx context.Context, id string, segmentID int) (model.RoutingDecision, error) {
	tl, err := s.store.Get(ctx, id)
	if err != nil {
		return model.RoutingDecision{}, err
	}
	i := tl.IndexOf(segmentID)
	if i < 0 {
		return model.RoutingDecision{}, fmt.Errorf("%w: %d", timeline.ErrSegmentNotFound, segmentID)
	}
	prev, next := tl.Neighbors(i)
	return s.router.Decide(tl.Segments[i], prev, next), nil
}

// ApplyRouting accepts a recommendation by switching the segment's model
func (s *TimelineService) ApplyRouting(ctx context.Context, id string, segmentID int, modelID string) (model.Segment, error) {
	if _, ok := s.registry.Lookup(modelID); !ok {
		return model.Segment{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return s.UpdateSegment(ctx, id, segmentID, model.SegmentPatch{Model: &modelID})
}

// SplitSegment replaces a segment with parts that fit its model's ceiling
func (s *TimelineService) SplitSegment(ctx context.Context, id string, segmentID int) ([]model.Segment, error) {
	var parts []model.Segment
	_, err := s.mutate(ctx, id, func(tl *model.Timeline) error {
		i := tl.IndexOf(segmentID)
		if i < 0 {
			return fmt.Errorf("%w: %d", timeline.ErrSegmentNotFound, segmentID)
		}
		var err error
		parts, err = timeline.ApplySplit(tl, segmentID, s.splitter.Split(tl.Segments[i]))
		return err
	})
	return parts, err
}

// SplitAll splits every segment whose routing decision requires it
func (s *TimelineService) SplitAll(ctx context.Context, id string) (*model.Timeline, error) {
	return s.mutate(ctx, id, func(tl *model.Timeline) error {
		var ids []int
		for _, d := range s.router.DecideTimeline(tl) {
			if d.RequiresSplit {
				ids = append(ids, d.SegmentID)
			}
		}
		for _, segID := range ids {
			i := tl.IndexOf(segID)
			if i < 0 {
				continue
			}
			if _, err := timeline.ApplySplit(tl, segID, s.splitter.Split(tl.Segments[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TimelineService) Consistency(ctx context.Context, id string) (model.ConsistencyReport, error) {
	tl, err := s.store.Get(ctx, id)
	if err != nil {
		return model.ConsistencyReport{}, err
	}
	return s.checker.Check(tl), nil
}

func (s *TimelineService) Export(ctx context.Context, id string) ([]byte, error) {
	tl, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return timeline.Export(tl)
}

// Import stores an exported timeline under a fresh id
func (s *TimelineService) Import(ctx context.Context, data []byte) (*model.Timeline, error) {
	tl, err := timeline.Import(data)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, tl); err != nil {
		return nil, err
	}
	s.logger.Info("timeline imported", "timeline_id", tl.ID, "segments", len(tl.Segments))
	return tl, nil
}
