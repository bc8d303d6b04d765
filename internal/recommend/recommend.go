// Package recommend derives genre-affinity recommendations from a user's
// rating signal. The heuristic is deterministic and explainable: affinity
// genres come from the user's ratings of 8 or above, candidates are
// unrated titles sharing those genres, ranked by cached average rating
// then vote count. No learned model is involved.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/repository"
)

// HighRatingThreshold is the minimum value a rating needs to count toward
// genre affinity.
const HighRatingThreshold = 8

// DefaultLimit applies when the caller does not ask for a specific count.
const DefaultLimit = 5

// Library is the read surface the engine needs. repository.Repository
// satisfies it through repoLibrary; tests substitute an in-memory fake.
type Library interface {
	HighlyRatedByUser(ctx context.Context, userID string, minValue int) ([]domain.Rating, error)
	GenresOfTitles(ctx context.Context, titleIDs []string) ([]domain.Genre, error)
	Candidates(ctx context.Context, genreNames []string, excludeUserID string, limit int) ([]repository.RecommendationCandidate, error)
}

// Engine produces recommendations for users.
type Engine struct {
	lib      Library
	maxLimit int
}

// NewEngine builds an engine over the repository.
func NewEngine(repo *repository.Repository, maxLimit int) *Engine {
	return NewEngineWithLibrary(repoLibrary{repo: repo}, maxLimit)
}

// NewEngineWithLibrary builds an engine over any Library implementation.
func NewEngineWithLibrary(lib Library, maxLimit int) *Engine {
	if maxLimit <= 0 {
		maxLimit = 50
	}
	return &Engine{lib: lib, maxLimit: maxLimit}
}

// Recommend proposes up to limit unrated titles in the user's affinity
// genres. A user with no ratings of 8+ gets an empty slice, not an error.
// Titles the user has already rated never appear, whatever the score.
func (e *Engine) Recommend(ctx context.Context, userID string, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	high, err := e.lib.HighlyRatedByUser(ctx, userID, HighRatingThreshold)
	if err != nil {
		return nil, fmt.Errorf("collect high ratings: %w", err)
	}
	if len(high) == 0 {
		return []domain.Recommendation{}, nil
	}

	titleIDs := make([]string, 0, len(high))
	for _, rating := range high {
		titleIDs = append(titleIDs, rating.TitleID)
	}

	genres, err := e.lib.GenresOfTitles(ctx, titleIDs)
	if err != nil {
		return nil, fmt.Errorf("derive affinity genres: %w", err)
	}
	if len(genres) == 0 {
		return []domain.Recommendation{}, nil
	}

	names := make([]string, 0, len(genres))
	for _, genre := range genres {
		names = append(names, genre.Name)
	}

	candidates, err := e.lib.Candidates(ctx, names, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("collect candidates: %w", err)
	}

	recs := make([]domain.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, domain.Recommendation{
			Title:         c.Title,
			MatchedGenres: c.MatchedGenres,
			Reason:        reasonFor(c.MatchedGenres),
		})
	}
	return recs, nil
}

// reasonFor renders the affinity genres that drove a candidate's inclusion.
func reasonFor(genres []string) string {
	switch len(genres) {
	case 0:
		// Candidates always match at least one affinity genre; guard anyway.
		return "Matches titles you rated highly"
	case 1:
		return fmt.Sprintf("Because you rate %s titles highly", genres[0])
	case 2:
		return fmt.Sprintf("Because you rate %s and %s titles highly", genres[0], genres[1])
	default:
		return fmt.Sprintf("Because you rate %s and %s titles highly",
			strings.Join(genres[:len(genres)-1], ", "), genres[len(genres)-1])
	}
}

type repoLibrary struct {
	repo *repository.Repository
}

func (l repoLibrary) HighlyRatedByUser(ctx context.Context, userID string, minValue int) ([]domain.Rating, error) {
	return l.repo.Ratings.HighlyRatedByUser(ctx, userID, minValue)
}

func (l repoLibrary) GenresOfTitles(ctx context.Context, titleIDs []string) ([]domain.Genre, error) {
	return l.repo.Genres.OfTitles(ctx, titleIDs)
}

func (l repoLibrary) Candidates(ctx context.Context, genreNames []string, excludeUserID string, limit int) ([]repository.RecommendationCandidate, error) {
	return l.repo.Titles.Candidates(ctx, genreNames, excludeUserID, limit)
}
