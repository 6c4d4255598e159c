package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/chosei-dev/chosei/services/poll-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// EventReader loads an event's layout and its live vote counts.
type EventReader interface {
	Layout(ctx context.Context, id string) (model.EventDetail, error)
	VoteStats(ctx context.Context, id string) ([]model.CellStat, error)
}

type keyValue interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// EventCache keeps event layouts in Redis. Layouts never change after
// creation, so entries only expire. Vote statistics always come from the
// underlying reader. Redis failures fall back to the reader.
type EventCache struct {
	next   EventReader
	kv     keyValue
	ttl    time.Duration
	logger *slog.Logger
}

func NewEventCache(next EventReader, kv keyValue, ttl time.Duration, logger *slog.Logger) *EventCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &EventCache{next: next, kv: kv, ttl: ttl, logger: logger}
}

func layoutKey(id string) string { return "poll:event:" + id + ":layout" }

func (c *EventCache) Layout(ctx context.Context, id string) (model.EventDetail, error) {
	raw, err := c.kv.Get(ctx, layoutKey(id)).Bytes()
	switch {
	case err == nil:
		var cached model.EventDetail
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cached event", "event_id", id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("event cache read failed", "event_id", id, "err", err)
	}

	layout, err := c.next.Layout(ctx, id)
	if err != nil {
		return model.EventDetail{}, err
	}
	if encoded, err := json.Marshal(layout); err == nil {
		if err := c.kv.Set(ctx, layoutKey(id), encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("event cache write failed", "event_id", id, "err", err)
		}
	}
	return layout, nil
}

func (c *EventCache) VoteStats(ctx context.Context, id string) ([]model.CellStat, error) {
	return c.next.VoteStats(ctx, id)
}
