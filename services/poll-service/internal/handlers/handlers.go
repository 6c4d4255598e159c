package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/chosei-dev/chosei/libs/httpx"
	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/model"
	"github.com/chosei-dev/chosei/services/poll-service/internal/registration"
	"github.com/chosei-dev/chosei/services/poll-service/internal/session"
	"github.com/chosei-dev/chosei/services/poll-service/internal/voteform"
)

// TimestampLayout is how pattern bounds are rendered: local wall time in the
// service time zone.
const TimestampLayout = "2006-01-02 15:04:05"

type Authenticator interface {
	CurrentUser(r *http.Request) (*session.User, error)
	RequireUser(r *http.Request) (*session.User, error)
}

type Registrar interface {
	Register(ctx context.Context, sub voteform.Submission, ownerID *string) (registration.Result, error)
}

type PatternLister interface {
	ListPatterns(ctx context.Context, userID string) ([]availability.Pattern, error)
}

type EventCreator interface {
	Create(ctx context.Context, in model.NewEvent) (model.EventDetail, error)
}

type EventReader interface {
	Layout(ctx context.Context, id string) (model.EventDetail, error)
	VoteStats(ctx context.Context, id string) ([]model.CellStat, error)
}

type VoteStore interface {
	Submit(ctx context.Context, eventID, participant string, authUserID *string, cells []model.Cell) (string, error)
}

type patternItem struct {
	UserID *string `json:"user_id"`
	Start  string  `json:"start_timestamp"`
	End    string  `json:"end_timestamp"`
}

func patternItems(patterns []availability.Pattern, loc *time.Location) []patternItem {
	items := make([]patternItem, len(patterns))
	for i, p := range patterns {
		items[i] = patternItem{
			UserID: p.UserID,
			Start:  p.Start.In(loc).Format(TimestampLayout),
			End:    p.End.In(loc).Format(TimestampLayout),
		}
	}
	return items
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func ownerID(u *session.User) *string {
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}
