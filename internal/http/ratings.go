package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/ledger"
)

type ratingSubmitRequest struct {
	TitleID    string  `json:"titleId"`
	Value      int     `json:"value"`
	ReviewText *string `json:"reviewText"`
}

type ratingResponse struct {
	UserID     string    `json:"userId"`
	TitleID    string    `json:"titleId"`
	Value      int       `json:"value"`
	ReviewText *string   `json:"reviewText,omitempty"`
	RatedAt    time.Time `json:"ratedAt"`
}

type percentileResponse struct {
	ratingResponse
	Percentile float64 `json:"percentile"`
}

type highRaterResponse struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Value    int       `json:"value"`
	RatedAt  time.Time `json:"ratedAt"`
}

// handleSubmitRating is the fast write path: storage constraints enforce
// referential integrity, no post-write verification.
func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	s.submitRating(w, r, s.ledger.SubmitUnchecked)
}

// handleSubmitRatingValidated runs the full state machine: existence
// checks, upsert, aggregate refresh, verification, commit.
func (s *Server) handleSubmitRatingValidated(w http.ResponseWriter, r *http.Request) {
	s.submitRating(w, r, s.ledger.Submit)
}

func (s *Server) submitRating(w http.ResponseWriter, r *http.Request, submit func(context.Context, ledger.Submission) (domain.Rating, error)) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	userID := chi.URLParam(r, "userID")

	var req ratingSubmitRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	rating, err := submit(r.Context(), ledger.Submission{
		UserID:     userID,
		TitleID:    strings.TrimSpace(req.TitleID),
		Value:      req.Value,
		ReviewText: normalizeStringPtr(req.ReviewText),
	})
	if err != nil {
		s.respondSubmissionError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, toRatingResponse(rating))
}

func (s *Server) handleTitlePercentiles(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")

	entries, err := s.ranking.PercentileRank(r.Context(), titleID)
	if err != nil {
		s.logger.Printf("percentile rank error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute percentiles")
		return
	}

	items := make([]percentileResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, percentileResponse{
			ratingResponse: toRatingResponse(entry.Rating),
			Percentile:     entry.Percentile,
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleHighRaters(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")

	minValue := 8
	if val := strings.TrimSpace(r.URL.Query().Get("min")); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed < 1 || parsed > 10 {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "min must be an integer between 1 and 10")
			return
		}
		minValue = parsed
	}

	raters, err := s.repo.Ratings.HighRaters(r.Context(), titleID, minValue)
	if err != nil {
		s.logger.Printf("high raters error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list raters")
		return
	}

	items := make([]highRaterResponse, 0, len(raters))
	for _, rater := range raters {
		items = append(items, highRaterResponse{
			UserID:   rater.UserID,
			Username: rater.Username,
			Value:    rater.Value,
			RatedAt:  rater.RatedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func toRatingResponse(rating domain.Rating) ratingResponse {
	return ratingResponse{
		UserID:     rating.UserID,
		TitleID:    rating.TitleID,
		Value:      rating.Value,
		ReviewText: rating.ReviewText,
		RatedAt:    rating.RatedAt,
	}
}
