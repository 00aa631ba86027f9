package store

import (
	"context"
	"errors"

	"github.com/reelforge/api/internal/model"
)

var ErrNotFound = errors.New("timeline not found")
var ErrDuplicate = errors.New("timeline already exists")

// TimelineStore persists timelines. Get returns a copy the caller may mutate
// freely; changes only land through Update.
type TimelineStore interface {
	Create(ctx context.Context, tl *model.Timeline) error
	Get(ctx context.Context, id string) (*model.Timeline, error)
	Update(ctx context.Context, tl *model.Timeline) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.TimelineSummary, error)
	Ping(ctx context.Context) error
}
