package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chosei-dev/chosei/libs/httpx"
	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/candidates"
	"github.com/chosei-dev/chosei/services/poll-service/internal/metrics"
	"github.com/chosei-dev/chosei/services/poll-service/internal/model"
	"github.com/chosei-dev/chosei/services/poll-service/internal/storage"
	"github.com/chosei-dev/chosei/services/poll-service/internal/voteform"
)

const maxTitleLength = 200

type EventHandler struct {
	creator  EventCreator
	reader   EventReader
	votes    VoteStore
	patterns PatternLister
	auth     Authenticator
	pipeline availability.Pipeline
	logger   *slog.Logger
}

func NewEventHandler(creator EventCreator, reader EventReader, votes VoteStore, patterns PatternLister, auth Authenticator, pipeline availability.Pipeline, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		creator:  creator,
		reader:   reader,
		votes:    votes,
		patterns: patterns,
		auth:     auth,
		pipeline: pipeline,
		logger:   logger,
	}
}

type dateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type timeRange struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	StepMinutes int    `json:"step_minutes"`
}

type createEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Dates       []string   `json:"dates"`
	Times       []string   `json:"times"`
	DateRange   *dateRange `json:"date_range"`
	TimeRange   *timeRange `json:"time_range"`
}

// dateLabels prefers explicit labels and falls back to a generated range.
func (req createEventRequest) dateLabels() ([]string, error) {
	if len(req.Dates) > 0 || req.DateRange == nil {
		return req.Dates, nil
	}
	start, err := time.Parse(time.DateOnly, req.DateRange.Start)
	if err != nil {
		return nil, errors.New("date_range.start must be YYYY-MM-DD")
	}
	end, err := time.Parse(time.DateOnly, req.DateRange.End)
	if err != nil {
		return nil, errors.New("date_range.end must be YYYY-MM-DD")
	}
	return candidates.DateLabels(start, end)
}

func (req createEventRequest) timeLabels() ([]string, error) {
	if len(req.Times) > 0 || req.TimeRange == nil {
		return req.Times, nil
	}
	start, err := availability.ParseClockTime(req.TimeRange.Start)
	if err != nil {
		return nil, errors.New("time_range.start must be HH:MM")
	}
	end, err := availability.ParseClockTime(req.TimeRange.End)
	if err != nil {
		return nil, errors.New("time_range.end must be HH:MM")
	}
	step := req.TimeRange.StepMinutes
	if step == 0 {
		step = availability.DefaultIntervalMinutes
	}
	return candidates.TimeLabels(start, end, step)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	user, err := h.auth.CurrentUser(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var req createEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > maxTitleLength {
		httpx.WriteError(w, http.StatusBadRequest, "title is required (max 200 chars)")
		return
	}
	dates, err := req.dateLabels()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	times, err := req.timeLabels()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(dates) == 0 || len(times) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "at least one date and one time are required")
		return
	}

	detail, err := h.creator.Create(r.Context(), model.NewEvent{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		CreatorID:   ownerID(user),
		DateLabels:  dates,
		TimeLabels:  times,
	})
	if err != nil {
		h.logger.Error("create event failed", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	detail.VoteStats = []model.CellStat{}
	httpx.WriteJSON(w, http.StatusCreated, detail)
}

// Get returns the event layout together with the current vote counts.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	detail, ok := h.layout(w, r, id)
	if !ok {
		return
	}
	stats, err := h.reader.VoteStats(r.Context(), id)
	if err != nil {
		h.logger.Error("load vote stats failed", "event_id", id, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	if stats == nil {
		stats = []model.CellStat{}
	}
	detail.VoteStats = stats
	httpx.WriteJSON(w, http.StatusOK, detail)
}

func (h *EventHandler) layout(w http.ResponseWriter, r *http.Request, id string) (model.EventDetail, bool) {
	detail, err := h.reader.Layout(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "event not found")
		return model.EventDetail{}, false
	case err != nil:
		h.logger.Error("load event failed", "event_id", id, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load event")
		return model.EventDetail{}, false
	}
	return detail, true
}

type voteResponse struct {
	UserID string `json:"user_id"`
	Cells  int    `json:"cells"`
}

// Vote stores a participant's checked cells. Label keys are optional here;
// every <dateId>__<timeId>=on entry counts.
func (h *EventHandler) Vote(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	user, err := h.auth.CurrentUser(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	entries, err := voteform.ReadEntries(r.Body)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	sub, err := voteform.Parse(entries)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(sub.ParticipantName)
	if name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "participantName is required")
		return
	}

	cells := make([]model.Cell, 0, len(sub.Checked))
	for _, c := range sub.Checked {
		cells = append(cells, model.Cell{DateID: c.DateID, TimeID: c.TimeID})
	}
	userID, err := h.votes.Submit(r.Context(), sub.EventID, name, ownerID(user), cells)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "event not found")
		return
	case errors.Is(err, storage.ErrUnknownEvent):
		httpx.WriteError(w, http.StatusBadRequest, "vote references unknown dates or times")
		return
	case err != nil:
		h.logger.Error("submit vote failed", "event_id", sub.EventID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to submit vote")
		return
	}
	metrics.VotesSubmitted.Inc()
	httpx.WriteJSON(w, http.StatusCreated, voteResponse{UserID: userID, Cells: len(cells)})
}

type suggestion struct {
	DateID string `json:"event_date_id"`
	TimeID string `json:"event_time_id"`
}

// Suggestions lists the cells of an event the caller is already known to be
// free for, based on stored patterns.
func (h *EventHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	user, err := h.auth.RequireUser(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	detail, ok := h.layout(w, r, id)
	if !ok {
		return
	}
	patterns, err := h.patterns.ListPatterns(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list patterns failed", "user_id", user.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load patterns")
		return
	}

	out := []suggestion{}
	for _, c := range h.pipeline.Suggest(gridOf(detail), patterns) {
		out = append(out, suggestion{DateID: c.DateID, TimeID: c.TimeID})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"event_id": id, "cells": out})
}

func gridOf(d model.EventDetail) availability.Grid {
	var g availability.Grid
	for _, dt := range d.Dates {
		g.DateIDs = append(g.DateIDs, dt.ID)
		g.DateLabels = append(g.DateLabels, dt.Label)
	}
	for _, tm := range d.Times {
		g.TimeIDs = append(g.TimeIDs, tm.ID)
		g.TimeLabels = append(g.TimeLabels, tm.Label)
	}
	return g
}
