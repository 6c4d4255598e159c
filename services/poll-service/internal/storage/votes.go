package storage

import (
	"context"
	"fmt"

	"github.com/chosei-dev/chosei/libs/db"
	"github.com/chosei-dev/chosei/services/poll-service/internal/model"
	"github.com/chosei-dev/chosei/services/poll-service/internal/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type VoteRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewVoteRepository(pool *db.Pool, outboxRepo *outbox.Repository) *VoteRepository {
	return &VoteRepository{pool: pool, outbox: outboxRepo}
}

type voteSubmitted struct {
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
	Cells         int    `json:"cells"`
}

// Submit registers the participant as a user row, linked to authUserID when
// the voter is signed in, and records one vote per checked cell. Everything
// commits together with the outbox event. A missing event is ErrNotFound and
// a cell outside the event's own dates and times is ErrUnknownEvent; neither
// writes anything.
func (r *VoteRepository) Submit(ctx context.Context, eventID, participant string, authUserID *string, cells []model.Cell) (string, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return "", ErrNotFound
	}

	var userID string
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		grid, err := lockEventGrid(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if err := grid.check(cells); err != nil {
			return err
		}

		sql, args, err := db.Insert("users", "name", "auth_user_id").Values(participant, authUserID).Returning("id").Build()
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, sql, args...).Scan(&userID); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}

		if len(cells) > 0 {
			q := db.Insert("votes", "user_id", "event_id", "event_date_id", "event_time_id", "is_available")
			for _, c := range cells {
				q.Values(userID, eventID, c.DateID, c.TimeID, true)
			}
			sql, args, err := q.Build()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				if db.IsForeignKeyViolation(err) {
					return ErrUnknownEvent
				}
				return fmt.Errorf("insert votes: %w", err)
			}
		}

		evt, err := outbox.NewEvent("poll_event", eventID, outbox.TypeVoteSubmitted, voteSubmitted{
			EventID:       eventID,
			ParticipantID: userID,
			Cells:         len(cells),
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// eventGrid is the set of date and time ids that belong to one event.
type eventGrid struct {
	dates map[string]bool
	times map[string]bool
}

func newEventGrid(dateIDs, timeIDs []string) eventGrid {
	g := eventGrid{dates: make(map[string]bool, len(dateIDs)), times: make(map[string]bool, len(timeIDs))}
	for _, id := range dateIDs {
		g.dates[id] = true
	}
	for _, id := range timeIDs {
		g.times[id] = true
	}
	return g
}

func (g eventGrid) check(cells []model.Cell) error {
	for _, c := range cells {
		if !g.dates[c.DateID] || !g.times[c.TimeID] {
			return fmt.Errorf("%w: cell %s/%s", ErrUnknownEvent, c.DateID, c.TimeID)
		}
	}
	return nil
}

// lockEventGrid share-locks the event row so it cannot be deleted under the
// vote, then loads its date and time ids.
func lockEventGrid(ctx context.Context, tx pgx.Tx, eventID string) (eventGrid, error) {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR SHARE`, eventID).Scan(&id)
	if db.IsNotFound(err) {
		return eventGrid{}, ErrNotFound
	}
	if err != nil {
		return eventGrid{}, fmt.Errorf("lock event: %w", err)
	}

	dateIDs, err := selectIDs(ctx, tx, "event_dates", eventID)
	if err != nil {
		return eventGrid{}, err
	}
	timeIDs, err := selectIDs(ctx, tx, "event_times", eventID)
	if err != nil {
		return eventGrid{}, err
	}
	return newEventGrid(dateIDs, timeIDs), nil
}

func selectIDs(ctx context.Context, tx pgx.Tx, table, eventID string) ([]string, error) {
	sql, args := db.Select(table, "id").Where("event_id", eventID).Build()
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return ids, nil
}
