package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UnrecognizedLabels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chosei_unrecognized_labels_total",
		Help: "Date rows and time columns dropped because their label did not parse",
	}, []string{"kind"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chosei_availability_registrations_total",
		Help: "Availability submissions by outcome",
	}, []string{"outcome"})

	PatternsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chosei_patterns_recorded_total",
		Help: "Availability patterns handed to storage",
	})

	VotesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chosei_votes_submitted_total",
		Help: "Participant votes stored",
	})
)
