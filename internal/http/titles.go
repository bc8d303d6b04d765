package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/metadata"
	"github.com/reelrate/reelrate/internal/repository"
)

type titleCreateRequest struct {
	PrimaryTitle   string   `json:"primaryTitle"`
	TitleType      *string  `json:"titleType"`
	StartYear      *int     `json:"startYear"`
	RuntimeMinutes *int     `json:"runtimeMinutes"`
	Genres         []string `json:"genres"`
}

type titleResponse struct {
	ID             string   `json:"id"`
	PrimaryTitle   string   `json:"primaryTitle"`
	TitleType      string   `json:"titleType"`
	StartYear      *int     `json:"startYear,omitempty"`
	RuntimeMinutes *int     `json:"runtimeMinutes,omitempty"`
	AvgRating      *float64 `json:"avgRating"`
	NumVotes       int64    `json:"numVotes"`
	Genres         []string `json:"genres,omitempty"`
}

type creditResponse struct {
	PersonID   string  `json:"personId"`
	Name       string  `json:"name"`
	BirthYear  *int    `json:"birthYear,omitempty"`
	DeathYear  *int    `json:"deathYear,omitempty"`
	Characters *string `json:"characters,omitempty"`
}

type titleDetailResponse struct {
	titleResponse
	Directors []creditResponse   `json:"directors"`
	Writers   []creditResponse   `json:"writers"`
	Producers []creditResponse   `json:"producers"`
	Cast      []creditResponse   `json:"cast"`
	Ratings   []titleRatingEntry `json:"userRatings"`
}

type titleRatingEntry struct {
	UserID     string    `json:"userId"`
	Value      int       `json:"value"`
	ReviewText *string   `json:"reviewText,omitempty"`
	RatedAt    time.Time `json:"ratedAt"`
}

func (s *Server) handleSearchTitles(w http.ResponseWriter, r *http.Request) {
	filters, err := buildTitleFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	titles, err := s.repo.Titles.Search(r.Context(), filters)
	if err != nil {
		s.logger.Printf("search titles error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search titles")
		return
	}

	items := make([]titleResponse, 0, len(titles))
	for _, title := range titles {
		items = append(items, toTitleResponse(title, nil))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func buildTitleFilters(query url.Values) (repository.TitleSearchFilters, error) {
	var filters repository.TitleSearchFilters

	if q := strings.TrimSpace(query.Get("keyword")); q != "" {
		filters.Keyword = &q
	}
	if val := strings.TrimSpace(query.Get("year_from")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year_from value")
		}
		filters.YearFrom = &year
	}
	if val := strings.TrimSpace(query.Get("year_to")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year_to value")
		}
		filters.YearTo = &year
	}
	if val := strings.TrimSpace(query.Get("type")); val != "" {
		filters.TitleType = &val
	}
	if val := strings.TrimSpace(query.Get("genre")); val != "" {
		filters.Genre = &val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	return filters, nil
}

func (s *Server) handleCreateTitle(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req titleCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	if strings.TrimSpace(req.PrimaryTitle) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "primaryTitle is required")
		return
	}
	if req.StartYear != nil && (*req.StartYear < 1870 || *req.StartYear > 2100) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startYear out of range")
		return
	}
	if req.RuntimeMinutes != nil && *req.RuntimeMinutes <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "runtimeMinutes must be positive")
		return
	}

	params := repository.TitleCreateParams{
		PrimaryTitle:   strings.TrimSpace(req.PrimaryTitle),
		StartYear:      req.StartYear,
		RuntimeMinutes: req.RuntimeMinutes,
	}
	if t := normalizeStringPtr(req.TitleType); t != nil {
		params.TitleType = strings.ToLower(*t)
	}

	title, err := s.repo.Titles.Create(r.Context(), params)
	if err != nil {
		s.logger.Printf("create title error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create title")
		return
	}

	genres := cleanGenres(req.Genres)
	if len(genres) > 0 {
		if err := s.repo.Genres.Attach(r.Context(), title.ID, genres); err != nil {
			s.logger.Printf("attach genres error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to attach genres")
			return
		}
	}

	title = s.enrichTitleMetadata(r.Context(), title, req)

	w.Header().Set("Location", fmt.Sprintf("/titles/%s", url.PathEscape(title.ID)))
	s.respondJSON(w, http.StatusCreated, toTitleResponse(title, genres))
}

// enrichTitleMetadata fills missing type/year/runtime from the upstream
// metadata service. Enrichment is best-effort: any upstream failure leaves
// the title as created.
func (s *Server) enrichTitleMetadata(ctx context.Context, title domain.Title, req titleCreateRequest) domain.Title {
	if s.metadata == nil {
		return title
	}
	if req.TitleType != nil && req.StartYear != nil && req.RuntimeMinutes != nil {
		return title
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.MetadataTimeoutSecs)*time.Second)
	defer cancel()

	result, err := s.metadata.Fetch(ctx, title.PrimaryTitle)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Printf("metadata fetch failed for %s: %v", title.PrimaryTitle, err)
		}
		return title
	}

	var titleType *string
	if req.TitleType == nil {
		titleType = result.TitleType
	}
	var startYear, runtime *int
	if req.StartYear == nil {
		startYear = result.StartYear
	}
	if req.RuntimeMinutes == nil {
		runtime = result.RuntimeMinutes
	}

	updated, err := s.repo.Titles.UpdateMetadata(ctx, title.ID, titleType, startYear, runtime)
	if err != nil {
		s.logger.Printf("update title metadata failed: %v", err)
		return title
	}
	return updated
}

func (s *Server) handleTitleDetail(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")

	title, err := s.repo.Titles.GetByID(r.Context(), titleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch title error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch title")
		return
	}

	genres, err := s.repo.Genres.OfTitle(r.Context(), titleID)
	if err != nil {
		s.logger.Printf("fetch title genres error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch title")
		return
	}
	genreNames := make([]string, 0, len(genres))
	for _, genre := range genres {
		genreNames = append(genreNames, genre.Name)
	}

	credits, err := s.repo.People.CreditsFor(r.Context(), titleID)
	if err != nil {
		s.logger.Printf("fetch credits error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch title")
		return
	}

	ratings, err := s.repo.Ratings.ListForTitle(r.Context(), titleID)
	if err != nil {
		s.logger.Printf("fetch title ratings error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch title")
		return
	}

	resp := titleDetailResponse{
		titleResponse: toTitleResponse(title, genreNames),
		Directors:     make([]creditResponse, 0),
		Writers:       make([]creditResponse, 0),
		Producers:     make([]creditResponse, 0),
		Cast:          make([]creditResponse, 0),
		Ratings:       make([]titleRatingEntry, 0, len(ratings)),
	}
	for _, credit := range credits {
		entry := creditResponse{
			PersonID:   credit.Person.ID,
			Name:       credit.Person.PrimaryName,
			BirthYear:  credit.Person.BirthYear,
			DeathYear:  credit.Person.DeathYear,
			Characters: credit.Characters,
		}
		switch credit.RoleType {
		case "director":
			resp.Directors = append(resp.Directors, entry)
		case "writer":
			resp.Writers = append(resp.Writers, entry)
		case "producer":
			resp.Producers = append(resp.Producers, entry)
		default:
			resp.Cast = append(resp.Cast, entry)
		}
	}
	for _, rating := range ratings {
		resp.Ratings = append(resp.Ratings, titleRatingEntry{
			UserID:     rating.UserID,
			Value:      rating.Value,
			ReviewText: rating.ReviewText,
			RatedAt:    rating.RatedAt,
		})
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleMostRatedTitles lists titles by accumulated vote count, busiest
// first. Unrated titles still appear, at the tail.
func (s *Server) handleMostRatedTitles(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	titles, err := s.repo.Titles.MostRated(r.Context(), limit)
	if err != nil {
		s.logger.Printf("most rated titles error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list titles")
		return
	}

	items := make([]titleResponse, 0, len(titles))
	for _, title := range titles {
		items = append(items, toTitleResponse(title, nil))
	}
	s.respondJSON(w, http.StatusOK, items)
}

// handleAboveAverageTitles lists rated titles whose cached average sits at
// or above the mean of all titles' cached averages.
func (s *Server) handleAboveAverageTitles(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	titles, err := s.repo.Titles.AboveAverage(r.Context(), limit)
	if err != nil {
		s.logger.Printf("above average titles error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list titles")
		return
	}

	items := make([]titleResponse, 0, len(titles))
	for _, title := range titles {
		items = append(items, toTitleResponse(title, nil))
	}
	s.respondJSON(w, http.StatusOK, items)
}

type multiRoleResponse struct {
	TitleID      string   `json:"titleId"`
	PrimaryTitle string   `json:"primaryTitle"`
	PersonID     string   `json:"personId"`
	Name         string   `json:"name"`
	Roles        []string `json:"roles"`
}

// handleMultiRolePeople lists title credits of people who hold more than
// one distinct role type in the catalog.
func (s *Server) handleMultiRolePeople(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	credits, err := s.repo.People.MultiRole(r.Context(), limit)
	if err != nil {
		s.logger.Printf("multi-role people error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list credits")
		return
	}

	items := make([]multiRoleResponse, 0, len(credits))
	for _, credit := range credits {
		items = append(items, multiRoleResponse{
			TitleID:      credit.TitleID,
			PrimaryTitle: credit.PrimaryTitle,
			PersonID:     credit.PersonID,
			Name:         credit.PrimaryName,
			Roles:        credit.Roles,
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

// parseLimit reads the optional limit query parameter. A zero return with
// ok leaves the repository default in charge.
func (s *Server) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	val := strings.TrimSpace(r.URL.Query().Get("limit"))
	if val == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 1 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
		return 0, false
	}
	return parsed, true
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.repo.Genres.List(r.Context())
	if err != nil {
		s.logger.Printf("list genres error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list genres")
		return
	}

	type genreResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	items := make([]genreResponse, 0, len(genres))
	for _, genre := range genres {
		items = append(items, genreResponse{ID: genre.ID, Name: genre.Name})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleTopGenres(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Genres.TopByRating(r.Context(), 2, 20)
	if err != nil {
		s.logger.Printf("top genres error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rank genres")
		return
	}

	type genreStatsResponse struct {
		Name       string  `json:"name"`
		AvgRating  float64 `json:"avgRating"`
		NumRatings int64   `json:"numRatings"`
	}
	items := make([]genreStatsResponse, 0, len(stats))
	for _, stat := range stats {
		items = append(items, genreStatsResponse{Name: stat.Name, AvgRating: stat.AvgRating, NumRatings: stat.NumRatings})
	}
	s.respondJSON(w, http.StatusOK, items)
}

func toTitleResponse(title domain.Title, genres []string) titleResponse {
	return titleResponse{
		ID:             title.ID,
		PrimaryTitle:   title.PrimaryTitle,
		TitleType:      title.TitleType,
		StartYear:      title.StartYear,
		RuntimeMinutes: title.RuntimeMinutes,
		AvgRating:      title.Aggregate.AvgRating,
		NumVotes:       title.Aggregate.NumVotes,
		Genres:         genres,
	}
}

func cleanGenres(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	genres := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		genres = append(genres, name)
	}
	return genres
}
