// Package ranking computes the two windowed read-only rankings: a user's
// ratings by recency and a title's ratings by value percentile. Both are
// recomputed fresh per request; they are cheap next to the write path's
// aggregate recomputation.
package ranking

import (
	"context"
	"sort"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/repository"
)

// RecencyRanks orders ratings newest first and assigns rank 1 to the most
// recent. Ties on rated_at break by descending rating ID, so repeated
// calls over unchanged data produce identical output.
func RecencyRanks(ratings []domain.Rating) []domain.RankedRating {
	ordered := make([]domain.Rating, len(ratings))
	copy(ordered, ratings)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].RatedAt.Equal(ordered[j].RatedAt) {
			return ordered[i].RatedAt.After(ordered[j].RatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	ranked := make([]domain.RankedRating, len(ordered))
	for i, rating := range ordered {
		ranked[i] = domain.RankedRating{Rating: rating, Rank: i + 1}
	}
	return ranked
}

// Percentiles orders ratings ascending by value and assigns each the
// positional percentile i/(n-1), or 0 when the title has a single rating.
//
// The percentile is positional, not tie-adjusted: duplicate values receive
// distinct percentiles according to their position in the ascending order
// (value, then rated_at, then rating ID). A tie-averaged definition would
// give duplicates one shared percentile; that is intentionally not what
// this computes.
func Percentiles(ratings []domain.Rating) []domain.PercentileEntry {
	ordered := make([]domain.Rating, len(ratings))
	copy(ordered, ratings)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Value != ordered[j].Value {
			return ordered[i].Value < ordered[j].Value
		}
		if !ordered[i].RatedAt.Equal(ordered[j].RatedAt) {
			return ordered[i].RatedAt.Before(ordered[j].RatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	n := len(ordered)
	entries := make([]domain.PercentileEntry, n)
	for i, rating := range ordered {
		percentile := 0.0
		if n > 1 {
			percentile = float64(i) / float64(n-1)
		}
		entries[i] = domain.PercentileEntry{Rating: rating, Percentile: percentile}
	}
	return entries
}

// Engine serves rankings from the rating store. Reads only; never locks.
type Engine struct {
	repo *repository.Repository
}

// NewEngine constructs a ranking engine over the repository.
func NewEngine(repo *repository.Repository) *Engine {
	return &Engine{repo: repo}
}

// RecencyRank returns the user's ratings annotated with recency ranks.
func (e *Engine) RecencyRank(ctx context.Context, userID string) ([]domain.RankedRating, error) {
	ratings, err := e.repo.Ratings.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return RecencyRanks(ratings), nil
}

// PercentileRank returns the title's ratings annotated with positional
// percentiles.
func (e *Engine) PercentileRank(ctx context.Context, titleID string) ([]domain.PercentileEntry, error) {
	ratings, err := e.repo.Ratings.ListForTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	return Percentiles(ratings), nil
}
