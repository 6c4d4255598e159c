package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/chosei-dev/chosei/libs/db"
	"github.com/chosei-dev/chosei/services/poll-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownEvent = errors.New("unknown event, date or time")
)

type EventRepository struct {
	pool *db.Pool
}

func NewEventRepository(pool *db.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Create stores the event with its dates and times in one transaction. Label
// order becomes column_order / row_order.
func (r *EventRepository) Create(ctx context.Context, in model.NewEvent) (model.EventDetail, error) {
	var out model.EventDetail
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		sql, args, err := db.Insert("events", "title", "description", "creator_id").
			Values(in.Title, in.Description, in.CreatorID).
			Returning("id", "title", "description", "creator_id", "created_at").
			Build()
		if err != nil {
			return err
		}
		ev := &out.Event
		if err := tx.QueryRow(ctx, sql, args...).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.CreatorID, &ev.CreatedAt); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		if out.Dates, err = insertDates(ctx, tx, ev.ID, in.DateLabels); err != nil {
			return err
		}
		out.Times, err = insertTimes(ctx, tx, ev.ID, in.TimeLabels)
		return err
	})
	if err != nil {
		return model.EventDetail{}, err
	}
	return out, nil
}

func insertDates(ctx context.Context, tx pgx.Tx, eventID string, labels []string) ([]model.EventDate, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	q := db.Insert("event_dates", "event_id", "date_label", "column_order").
		Returning("id", "date_label", "column_order")
	for i, l := range labels {
		q.Values(eventID, l, i)
	}
	sql, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert event dates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EventDate, error) {
		var d model.EventDate
		err := row.Scan(&d.ID, &d.Label, &d.Order)
		return d, err
	})
}

func insertTimes(ctx context.Context, tx pgx.Tx, eventID string, labels []string) ([]model.EventTime, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	q := db.Insert("event_times", "event_id", "time_label", "row_order").
		Returning("id", "time_label", "row_order")
	for i, l := range labels {
		q.Values(eventID, l, i)
	}
	sql, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert event times: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EventTime, error) {
		var t model.EventTime
		err := row.Scan(&t.ID, &t.Label, &t.Order)
		return t, err
	})
}

// Layout loads the event and its ordered dates and times, without vote statistics.
func (r *EventRepository) Layout(ctx context.Context, id string) (model.EventDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.EventDetail{}, ErrNotFound
	}

	var out model.EventDetail
	sql, args := db.Select("events", "id", "title", "description", "creator_id", "created_at").
		Where("id", id).
		Build()
	ev := &out.Event
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.CreatorID, &ev.CreatedAt)
	if db.IsNotFound(err) {
		return model.EventDetail{}, ErrNotFound
	}
	if err != nil {
		return model.EventDetail{}, fmt.Errorf("select event: %w", err)
	}

	sql, args = db.Select("event_dates", "id", "date_label", "column_order").
		Where("event_id", id).
		OrderBy("column_order", false).
		Build()
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return model.EventDetail{}, fmt.Errorf("select event dates: %w", err)
	}
	out.Dates, err = pgx.CollectRows(rows, pgx.RowToStructByPos[model.EventDate])
	if err != nil {
		return model.EventDetail{}, fmt.Errorf("scan event dates: %w", err)
	}

	sql, args = db.Select("event_times", "id", "time_label", "row_order").
		Where("event_id", id).
		OrderBy("row_order", false).
		Build()
	rows, err = r.pool.Query(ctx, sql, args...)
	if err != nil {
		return model.EventDetail{}, fmt.Errorf("select event times: %w", err)
	}
	out.Times, err = pgx.CollectRows(rows, pgx.RowToStructByPos[model.EventTime])
	if err != nil {
		return model.EventDetail{}, fmt.Errorf("scan event times: %w", err)
	}
	return out, nil
}

func (r *EventRepository) VoteStats(ctx context.Context, id string) ([]model.CellStat, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	sql, args := db.Select("event_vote_statistics", "event_date_id", "event_time_id", "available_count").
		Where("event_id", id).
		Build()
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select vote statistics: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[model.CellStat])
}
