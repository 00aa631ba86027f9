package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelforge/api/internal/model"
)

// PostgresStore keeps each timeline as one JSONB document. Summary columns
// are denormalized so listing never decodes the segments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, tl *model.Timeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO timelines (id, name, segment_count, total_duration_sec, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tl.ID, tl.Name, len(tl.Segments), tl.TotalDurationSec, data, tl.CreatedAt, tl.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("create timeline: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Timeline, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM timelines WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	var tl model.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("decode timeline %s: %w", id, err)
	}
	return &tl, nil
}

func (s *PostgresStore) Update(ctx context.Context, tl *model.Timeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE timelines SET name = $2, segment_count = $3, total_duration_sec = $4, data = $5, updated_at = $6
		 WHERE id = $1`,
		tl.ID, tl.Name, len(tl.Segments), tl.TotalDurationSec, data, tl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update timeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM timelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.TimelineSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, segment_count, total_duration_sec, updated_at
		 FROM timelines ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	defer rows.Close()

	out := []model.TimelineSummary{}
	for rows.Next() {
		var sum model.TimelineSummary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.SegmentCount, &sum.TotalDurationSec, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
