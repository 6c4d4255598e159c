package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/model"
	"github.com/chosei-dev/chosei/services/poll-service/internal/registration"
	"github.com/chosei-dev/chosei/services/poll-service/internal/session"
	"github.com/chosei-dev/chosei/services/poll-service/internal/storage"
	"github.com/chosei-dev/chosei/services/poll-service/internal/voteform"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeAuth treats "Bearer <id>" as user <id> and "Bearer bad" as invalid.
type fakeAuth struct{}

func (fakeAuth) CurrentUser(r *http.Request) (*session.User, error) {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		return nil, nil
	}
	id := strings.TrimPrefix(raw, "Bearer ")
	if id == "bad" {
		return nil, session.ErrUnauthenticated
	}
	return &session.User{ID: id}, nil
}

func (a fakeAuth) RequireUser(r *http.Request) (*session.User, error) {
	u, err := a.CurrentUser(r)
	if err == nil && u == nil {
		err = session.ErrUnauthenticated
	}
	return u, err
}

type fakeRegistrar struct {
	sub   voteform.Submission
	owner *string
	res   registration.Result
	err   error
}

func (f *fakeRegistrar) Register(_ context.Context, sub voteform.Submission, owner *string) (registration.Result, error) {
	f.sub = sub
	f.owner = owner
	return f.res, f.err
}

type fakePatterns struct {
	byUser map[string][]availability.Pattern
	err    error
}

func (f fakePatterns) ListPatterns(_ context.Context, userID string) ([]availability.Pattern, error) {
	return f.byUser[userID], f.err
}

type fakeEvents struct {
	created model.NewEvent
	detail  model.EventDetail
	stats   []model.CellStat
}

func (f *fakeEvents) Create(_ context.Context, in model.NewEvent) (model.EventDetail, error) {
	f.created = in
	d := model.EventDetail{Event: model.Event{ID: "ev1", Title: in.Title, CreatorID: in.CreatorID}}
	for i, l := range in.DateLabels {
		d.Dates = append(d.Dates, model.EventDate{ID: fmt.Sprintf("d%d", i+1), Label: l, Order: i})
	}
	for i, l := range in.TimeLabels {
		d.Times = append(d.Times, model.EventTime{ID: fmt.Sprintf("t%d", i+1), Label: l, Order: i})
	}
	return d, nil
}

func (f *fakeEvents) Layout(_ context.Context, id string) (model.EventDetail, error) {
	if id != f.detail.Event.ID {
		return model.EventDetail{}, storage.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeEvents) VoteStats(context.Context, string) ([]model.CellStat, error) {
	return f.stats, nil
}

type fakeVotes struct {
	eventID string
	name    string
	auth    *string
	cells   []model.Cell
	err     error
}

func (f *fakeVotes) Submit(_ context.Context, eventID, participant string, authUserID *string, cells []model.Cell) (string, error) {
	f.eventID, f.name, f.auth, f.cells = eventID, participant, authUserID, cells
	return "u1", f.err
}

func formRequest(method, target, body, token string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

const gridForm = "eventId=ev1&participantName=Ann&date-label-d1=10-01&time-label-t1=09%3A00&d1__t1=on"

func TestAvailabilitySubmitRecorded(t *testing.T) {
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	reg := &fakeRegistrar{res: registration.Result{
		Status:   registration.StatusRecorded,
		Patterns: []availability.Pattern{{Start: start, End: start.Add(time.Hour)}},
	}}
	h := NewAvailabilityHandler(reg, fakePatterns{}, fakeAuth{}, time.UTC, discardLogger())

	rec := httptest.NewRecorder()
	h.Submit(rec, formRequest(http.MethodPost, "/api/v1/availability", gridForm, "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if reg.owner == nil || *reg.owner != "user-1" {
		t.Fatalf("owner=%v", reg.owner)
	}
	if reg.sub.EventID != "ev1" || !reg.sub.Matrix.Available[0][0] {
		t.Fatalf("submission=%+v", reg.sub)
	}

	var body struct {
		Status   string `json:"status"`
		Patterns []struct {
			UserID *string `json:"user_id"`
			Start  string  `json:"start_timestamp"`
			End    string  `json:"end_timestamp"`
		} `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "recorded" || len(body.Patterns) != 1 {
		t.Fatalf("body=%+v", body)
	}
	if body.Patterns[0].Start != "2025-10-01 09:00:00" || body.Patterns[0].End != "2025-10-01 10:00:00" {
		t.Fatalf("pattern=%+v", body.Patterns[0])
	}
}

func TestAvailabilitySubmitRendersInServiceZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, tokyo)
	reg := &fakeRegistrar{res: registration.Result{
		Status:   registration.StatusRecorded,
		Patterns: []availability.Pattern{{Start: start.UTC(), End: start.Add(time.Hour).UTC()}},
	}}
	h := NewAvailabilityHandler(reg, fakePatterns{}, fakeAuth{}, tokyo, discardLogger())

	rec := httptest.NewRecorder()
	h.Submit(rec, formRequest(http.MethodPost, "/api/v1/availability", gridForm, ""))
	if !strings.Contains(rec.Body.String(), `"start_timestamp":"2025-10-01 09:00:00"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
	if reg.owner != nil {
		t.Fatalf("anonymous submission should have no owner")
	}
}

func TestAvailabilitySubmitNoAvailability(t *testing.T) {
	reg := &fakeRegistrar{res: registration.Result{Status: registration.StatusNoAvailability, Patterns: []availability.Pattern{}}}
	h := NewAvailabilityHandler(reg, fakePatterns{}, fakeAuth{}, time.UTC, discardLogger())

	rec := httptest.NewRecorder()
	h.Submit(rec, formRequest(http.MethodPost, "/api/v1/availability", "eventId=ev1", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"no_availability","patterns":[]}` {
		t.Fatalf("body=%s", got)
	}
}

func TestAvailabilitySubmitErrors(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		token string
		err   error
		want  int
	}{
		{name: "missing event id", body: "participantName=Ann", want: http.StatusBadRequest},
		{name: "bad token", body: gridForm, token: "bad", want: http.StatusUnauthorized},
		{name: "persist failure", body: gridForm, err: fmt.Errorf("%w: boom", registration.ErrPersist), want: http.StatusInternalServerError},
		{name: "malformed grid", body: gridForm, err: availability.ErrMalformedMatrix, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAvailabilityHandler(&fakeRegistrar{err: tc.err}, fakePatterns{}, fakeAuth{}, time.UTC, discardLogger())
			rec := httptest.NewRecorder()
			h.Submit(rec, formRequest(http.MethodPost, "/api/v1/availability", tc.body, tc.token))
			if rec.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestAvailabilitySubmitRejectsGet(t *testing.T) {
	h := NewAvailabilityHandler(&fakeRegistrar{}, fakePatterns{}, fakeAuth{}, time.UTC, discardLogger())
	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestListPatternsRequiresUser(t *testing.T) {
	start := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	lister := fakePatterns{byUser: map[string][]availability.Pattern{
		"user-1": {{Start: start, End: start.Add(2 * time.Hour)}},
	}}
	h := NewAvailabilityHandler(&fakeRegistrar{}, lister, fakeAuth{}, time.UTC, discardLogger())

	rec := httptest.NewRecorder()
	h.ListPatterns(rec, formRequest(http.MethodGet, "/api/v1/availability/patterns", "", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListPatterns(rec, formRequest(http.MethodGet, "/api/v1/availability/patterns", "", "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"end_timestamp":"2025-10-01 11:00:00"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func newEventHandler(events *fakeEvents, votes *fakeVotes, patterns fakePatterns) *EventHandler {
	p := availability.Pipeline{Now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }}
	return NewEventHandler(events, events, votes, patterns, fakeAuth{}, p, discardLogger())
}

func TestCreateEventFromRanges(t *testing.T) {
	events := &fakeEvents{}
	h := newEventHandler(events, &fakeVotes{}, fakePatterns{})

	body := `{"title":" Team dinner ","date_range":{"start":"2025-10-01","end":"2025-10-03"},"time_range":{"start":"18:00","end":"20:00"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer user-1")
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if events.created.Title != "Team dinner" {
		t.Fatalf("title=%q", events.created.Title)
	}
	if got := strings.Join(events.created.DateLabels, ","); got != "2025-10-01,2025-10-02,2025-10-03" {
		t.Fatalf("dates=%s", got)
	}
	if got := strings.Join(events.created.TimeLabels, ","); got != "18:00,19:00,20:00" {
		t.Fatalf("times=%s", got)
	}
	if events.created.CreatorID == nil || *events.created.CreatorID != "user-1" {
		t.Fatalf("creator=%v", events.created.CreatorID)
	}
}

func TestCreateEventValidation(t *testing.T) {
	cases := map[string]string{
		"missing title": `{"dates":["10-01"],"times":["09:00"]}`,
		"no dates":      `{"title":"x","times":["09:00"]}`,
		"bad range":     `{"title":"x","date_range":{"start":"2025-10-03","end":"2025-10-01"},"times":["09:00"]}`,
		"bad time":      `{"title":"x","dates":["10-01"],"time_range":{"start":"9am","end":"10:00"}}`,
		"unknown field": `{"title":"x","dates":["10-01"],"times":["09:00"],"extra":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h := newEventHandler(&fakeEvents{}, &fakeVotes{}, fakePatterns{})
			rec := httptest.NewRecorder()
			h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func sampleDetail() model.EventDetail {
	return model.EventDetail{
		Event: model.Event{ID: "ev1", Title: "Sync"},
		Dates: []model.EventDate{{ID: "d1", Label: "10-01"}, {ID: "d2", Label: "10-02"}},
		Times: []model.EventTime{{ID: "t1", Label: "09:00"}, {ID: "t2", Label: "10:00"}},
	}
}

func TestGetEvent(t *testing.T) {
	events := &fakeEvents{detail: sampleDetail(), stats: []model.CellStat{{DateID: "d1", TimeID: "t1", Available: 2}}}
	h := newEventHandler(events, &fakeVotes{}, fakePatterns{})

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?id=ev1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var got model.EventDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Dates) != 2 || len(got.VoteStats) != 1 || got.VoteStats[0].Available != 2 {
		t.Fatalf("detail=%+v", got)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?id=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", rec.Code)
	}
}

func TestVoteCollectsCheckedCells(t *testing.T) {
	votes := &fakeVotes{}
	h := newEventHandler(&fakeEvents{}, votes, fakePatterns{})

	form := gridForm + "&date-label-d2=10-02&d2__t1=on"
	rec := httptest.NewRecorder()
	h.Vote(rec, formRequest(http.MethodPost, "/api/v1/events/votes", form, "user-9"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if votes.eventID != "ev1" || votes.name != "Ann" || len(votes.cells) != 2 {
		t.Fatalf("votes=%+v", votes)
	}
	if votes.cells[1] != (model.Cell{DateID: "d2", TimeID: "t1"}) {
		t.Fatalf("cells=%+v", votes.cells)
	}
	if votes.auth == nil || *votes.auth != "user-9" {
		t.Fatalf("auth=%v", votes.auth)
	}
}

func TestVoteWithoutLabelKeys(t *testing.T) {
	votes := &fakeVotes{}
	h := newEventHandler(&fakeEvents{}, votes, fakePatterns{})

	rec := httptest.NewRecorder()
	h.Vote(rec, formRequest(http.MethodPost, "/api/v1/events/votes", "eventId=ev1&participantName=Ann&d1__t1=on&d2__t1=on", ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	want := []model.Cell{{DateID: "d1", TimeID: "t1"}, {DateID: "d2", TimeID: "t1"}}
	if len(votes.cells) != 2 || votes.cells[0] != want[0] || votes.cells[1] != want[1] {
		t.Fatalf("cells=%+v", votes.cells)
	}
	if !strings.Contains(rec.Body.String(), `"cells":2`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestVoteErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "missing name", body: "eventId=ev1&d1__t1=on", want: http.StatusBadRequest},
		{name: "unknown event", body: gridForm, err: storage.ErrNotFound, want: http.StatusNotFound},
		{name: "foreign cell", body: gridForm, err: storage.ErrUnknownEvent, want: http.StatusBadRequest},
		{name: "db failure", body: gridForm, err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newEventHandler(&fakeEvents{}, &fakeVotes{err: tc.err}, fakePatterns{})
			rec := httptest.NewRecorder()
			h.Vote(rec, formRequest(http.MethodPost, "/api/v1/events/votes", tc.body, ""))
			if rec.Code != tc.want {
				t.Fatalf("status=%d want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestSuggestionsUseStoredPatterns(t *testing.T) {
	start := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)
	patterns := fakePatterns{byUser: map[string][]availability.Pattern{
		"user-1": {{Start: start, End: start.Add(2 * time.Hour)}},
	}}
	h := newEventHandler(&fakeEvents{detail: sampleDetail()}, &fakeVotes{}, patterns)

	rec := httptest.NewRecorder()
	h.Suggestions(rec, formRequest(http.MethodGet, "/api/v1/events/suggestions?id=ev1", "", "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Cells []suggestion `json:"cells"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []suggestion{{DateID: "d2", TimeID: "t1"}, {DateID: "d2", TimeID: "t2"}}
	if len(body.Cells) != len(want) || body.Cells[0] != want[0] || body.Cells[1] != want[1] {
		t.Fatalf("cells=%+v", body.Cells)
	}

	rec = httptest.NewRecorder()
	h.Suggestions(rec, formRequest(http.MethodGet, "/api/v1/events/suggestions?id=ev1", "", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rec.Code)
	}
}
