package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chosei-dev/chosei/libs/httpx"
	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/registration"
	"github.com/chosei-dev/chosei/services/poll-service/internal/voteform"
)

type AvailabilityHandler struct {
	registrar Registrar
	patterns  PatternLister
	auth      Authenticator
	loc       *time.Location
	logger    *slog.Logger
}

func NewAvailabilityHandler(registrar Registrar, patterns PatternLister, auth Authenticator, loc *time.Location, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{registrar: registrar, patterns: patterns, auth: auth, loc: loc, logger: logger}
}

type availabilityResponse struct {
	Status   registration.Status `json:"status"`
	Patterns []patternItem       `json:"patterns"`
}

// Submit runs the availability form through the pipeline and stores the
// resulting patterns for the caller, anonymous callers included.
func (h *AvailabilityHandler) Submit(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.registrar.Register(r.Context(), sub, ownerID(user))
	switch {
	case errors.Is(err, availability.ErrMalformedMatrix):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("availability registration failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"event_id", sub.EventID,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record availability")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{
		Status:   res.Status,
		Patterns: patternItems(res.Patterns, h.loc),
	})
}

// ListPatterns returns the signed-in caller's stored patterns in start order.
func (h *AvailabilityHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	user, err := h.auth.RequireUser(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	patterns, err := h.patterns.ListPatterns(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list patterns failed", "user_id", user.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load patterns")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"patterns": patternItems(patterns, h.loc)})
}
