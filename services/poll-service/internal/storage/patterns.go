package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/chosei-dev/chosei/libs/db"
	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

type PatternRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	now    func() time.Time
}

func NewPatternRepository(pool *db.Pool, outboxRepo *outbox.Repository) *PatternRepository {
	return &PatternRepository{pool: pool, outbox: outboxRepo, now: time.Now}
}

type availabilityRecorded struct {
	EventID  string       `json:"event_id"`
	UserID   *string      `json:"user_id"`
	Patterns []patternDTO `json:"patterns"`
}

type patternDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SavePatterns upserts the batch on (user_id, start_time, end_time) and
// records an outbox event, all in one transaction.
func (r *PatternRepository) SavePatterns(ctx context.Context, eventID string, patterns []availability.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}
	now := r.now()
	q := db.Upsert("user_availability_patterns", []string{"user_id", "start_time", "end_time"},
		"user_id", "start_time", "end_time", "updated_at").
		DoUpdate("updated_at")
	dtos := make([]patternDTO, len(patterns))
	for i, p := range patterns {
		q.Values(p.UserID, p.Start, p.End, now)
		dtos[i] = patternDTO{Start: p.Start, End: p.End}
	}
	sql, args, err := q.Build()
	if err != nil {
		return err
	}

	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("upsert patterns: %w", err)
		}
		evt, err := outbox.NewEvent("poll_event", eventID, outbox.TypeAvailabilityRecorded, availabilityRecorded{
			EventID:  eventID,
			UserID:   patterns[0].UserID,
			Patterns: dtos,
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

func (r *PatternRepository) ListPatterns(ctx context.Context, userID string) ([]availability.Pattern, error) {
	sql, args := db.Select("user_availability_patterns", "start_time", "end_time").
		Where("user_id", userID).
		OrderBy("start_time", false).
		Build()
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select patterns: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (availability.Pattern, error) {
		p := availability.Pattern{UserID: &userID}
		err := row.Scan(&p.Start, &p.End)
		return p, err
	})
}
