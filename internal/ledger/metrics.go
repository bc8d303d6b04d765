package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelrate",
		Subsystem: "ledger",
		Name:      "submissions_total",
		Help:      "Rating submissions by path and outcome.",
	}, []string{"path", "outcome"})

	submissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reelrate",
		Subsystem: "ledger",
		Name:      "submission_duration_seconds",
		Help:      "Wall time of rating submission transactions.",
		Buckets:   prometheus.DefBuckets,
	})
)

func observeSubmission(checked bool, err error) {
	path := "fast"
	if checked {
		path = "validated"
	}
	submissionsTotal.WithLabelValues(path, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConsistency):
		return "consistency_error"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
