package domain

import "time"

// Rating is the central mutable fact: one row per (user, title) pair.
// A resubmission for the same pair replaces value, review text, and
// timestamp in place; no history of the prior value is kept.
type Rating struct {
	ID         int64
	UserID     string
	TitleID    string
	Value      int
	ReviewText *string
	RatedAt    time.Time
}

// RankedRating is a rating annotated with its recency rank for one user.
// Rank 1 is the user's most recent rating.
type RankedRating struct {
	Rating
	Rank int
}

// PercentileEntry is a rating annotated with its positional percentile
// within one title's rating set.
type PercentileEntry struct {
	Rating
	Percentile float64
}

// Recommendation is one proposed title for a user, with the genres that
// drove its inclusion and a human-readable reason.
type Recommendation struct {
	Title         Title
	MatchedGenres []string
	Reason        string
}
