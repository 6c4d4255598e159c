// Package registration records a participant's availability as reusable patterns.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chosei-dev/chosei/services/poll-service/internal/availability"
	"github.com/chosei-dev/chosei/services/poll-service/internal/metrics"
	"github.com/chosei-dev/chosei/services/poll-service/internal/voteform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrPersist = errors.New("persist availability patterns")

type PatternStore interface {
	SavePatterns(ctx context.Context, eventID string, patterns []availability.Pattern) error
}

type Status string

const (
	StatusRecorded       Status = "recorded"
	StatusNoAvailability Status = "no_availability"
)

type Result struct {
	Status   Status
	Patterns []availability.Pattern
}

type Service struct {
	pipeline availability.Pipeline
	store    PatternStore
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New wires the pipeline's rejection hook to the debug log and the
// unrecognized-label counter.
func New(pipeline availability.Pipeline, store PatternStore, logger *slog.Logger) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("github.com/chosei-dev/chosei/services/poll-service/internal/registration"),
	}
	next := pipeline.OnReject
	pipeline.OnReject = func(r availability.Rejection) {
		metrics.UnrecognizedLabels.WithLabelValues(string(r.Kind)).Inc()
		logger.Debug("label not recognized", "kind", r.Kind, "id", r.ID, "label", r.Label)
		if next != nil {
			next(r)
		}
	}
	s.pipeline = pipeline
	return s
}

// Register turns sub into patterns owned by ownerID (nil for anonymous) and
// stores them as one batch. When nothing usable was selected the store is not
// touched and the result says so.
func (s *Service) Register(ctx context.Context, sub voteform.Submission, ownerID *string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register", trace.WithAttributes(
		attribute.String("poll.event_id", sub.EventID),
		attribute.Int("poll.selected_cells", sub.Matrix.Selected()),
		attribute.Bool("poll.anonymous", ownerID == nil),
	))
	defer span.End()

	patterns, err := s.pipeline.Patterns(sub.Matrix, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate")
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("poll.patterns", len(patterns)))

	if len(patterns) == 0 {
		metrics.Registrations.WithLabelValues(string(StatusNoAvailability)).Inc()
		return Result{Status: StatusNoAvailability, Patterns: []availability.Pattern{}}, nil
	}

	if err := s.store.SavePatterns(ctx, sub.EventID, patterns); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		metrics.Registrations.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	metrics.Registrations.WithLabelValues(string(StatusRecorded)).Inc()
	metrics.PatternsRecorded.Add(float64(len(patterns)))
	s.logger.Info("availability recorded",
		"event_id", sub.EventID,
		"patterns", len(patterns),
		"anonymous", ownerID == nil,
	)
	return Result{Status: StatusRecorded, Patterns: patterns}, nil
}
