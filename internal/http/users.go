package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/repository"
)

type userCreateRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

type rankedRatingResponse struct {
	ratingResponse
	Rank int `json:"rank"`
}

type recommendationResponse struct {
	Title         titleResponse `json:"title"`
	MatchedGenres []string      `json:"matchedGenres"`
	Reason        string        `json:"reason"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.Users.List(r.Context())
	if err != nil {
		s.logger.Printf("list users error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req userCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "username is required")
		return
	}

	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Username: strings.TrimSpace(req.Username),
		Email:    normalizeStringPtr(req.Email),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			s.respondError(w, http.StatusConflict, "CONFLICT", "Username already exists")
			return
		}
		s.logger.Printf("create user error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
		return
	}

	s.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleRatingHistory returns the user's ratings annotated with recency
// ranks, rank 1 being the most recent.
func (s *Server) handleRatingHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ranked, err := s.ranking.RecencyRank(r.Context(), userID)
	if err != nil {
		s.logger.Printf("rating history error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load rating history")
		return
	}

	items := make([]rankedRatingResponse, 0, len(ranked))
	for _, entry := range ranked {
		items = append(items, rankedRatingResponse{
			ratingResponse: toRatingResponse(entry.Rating),
			Rank:           entry.Rank,
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

// handleRecommendations serves genre-affinity recommendations. A user
// without high ratings gets an empty list, not an error.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 0
	if val := strings.TrimSpace(r.URL.Query().Get("limit")); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	recs, err := s.recommend.Recommend(r.Context(), userID, limit)
	if err != nil {
		s.logger.Printf("recommend error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build recommendations")
		return
	}

	items := make([]recommendationResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, recommendationResponse{
			Title:         toTitleResponse(rec.Title, nil),
			MatchedGenres: rec.MatchedGenres,
			Reason:        rec.Reason,
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	}
}
