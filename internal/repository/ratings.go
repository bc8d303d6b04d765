package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reelrate/reelrate/internal/domain"
)

// RatingsRepository is the rating store: one row per (user, title) pair.
type RatingsRepository struct {
	db DB
}

const ratingColumns = `user_rating_id, user_id, title_id, rating_value, review_text, rated_at`

// RatingUpsertParams captures the payload required to upsert a rating.
type RatingUpsertParams struct {
	UserID     string
	TitleID    string
	Value      int
	ReviewText *string
}

// Upsert inserts or replaces the rating for the (user, title) pair and
// reports whether a new row was created. A replacement overwrites value,
// review text, and rated_at; the prior value is not kept.
func (r *RatingsRepository) Upsert(ctx context.Context, params RatingUpsertParams) (domain.Rating, bool, error) {
	const query = `
        INSERT INTO user_rating (user_id, title_id, rating_value, review_text)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, title_id)
        DO UPDATE SET rating_value = EXCLUDED.rating_value,
                      review_text = EXCLUDED.review_text,
                      rated_at = now()
        RETURNING ` + ratingColumns + `, (xmax = 0) AS inserted
    `

	var rating domain.Rating
	var inserted bool
	err := r.db.QueryRow(ctx, query, params.UserID, params.TitleID, params.Value, params.ReviewText).Scan(
		&rating.ID,
		&rating.UserID,
		&rating.TitleID,
		&rating.Value,
		&rating.ReviewText,
		&rating.RatedAt,
		&inserted,
	)
	if err != nil {
		return domain.Rating{}, false, err
	}
	return rating, inserted, nil
}

// Get retrieves the rating for a specific (user, title) pair.
func (r *RatingsRepository) Get(ctx context.Context, userID, titleID string) (domain.Rating, error) {
	const query = `
        SELECT ` + ratingColumns + `
        FROM user_rating
        WHERE user_id = $1 AND title_id = $2
    `
	rating, err := scanRating(r.db.QueryRow(ctx, query, userID, titleID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// ListForUser returns all of a user's ratings, newest first.
func (r *RatingsRepository) ListForUser(ctx context.Context, userID string) ([]domain.Rating, error) {
	return r.list(ctx, `
        SELECT `+ratingColumns+`
        FROM user_rating
        WHERE user_id = $1
        ORDER BY rated_at DESC, user_rating_id DESC
    `, userID)
}

// ListForTitle returns all ratings of a title, newest first.
func (r *RatingsRepository) ListForTitle(ctx context.Context, titleID string) ([]domain.Rating, error) {
	return r.list(ctx, `
        SELECT `+ratingColumns+`
        FROM user_rating
        WHERE title_id = $1
        ORDER BY rated_at DESC, user_rating_id DESC
    `, titleID)
}

// HighlyRatedByUser returns the user's ratings at or above the threshold.
// This is the affinity signal for recommendations.
func (r *RatingsRepository) HighlyRatedByUser(ctx context.Context, userID string, minValue int) ([]domain.Rating, error) {
	return r.list(ctx, `
        SELECT `+ratingColumns+`
        FROM user_rating
        WHERE user_id = $1 AND rating_value >= $2
        ORDER BY rating_value DESC, rated_at DESC, user_rating_id DESC
    `, userID, minValue)
}

func (r *RatingsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Rating, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

// Aggregate recomputes average and count over the full rating set of a
// title. Inside a submission transaction this must run behind the title
// row lock (TitlesRepository.LockRow) so concurrent writers serialize.
func (r *RatingsRepository) Aggregate(ctx context.Context, titleID string) (*float64, int64, error) {
	const query = `
        SELECT ROUND(AVG(rating_value)::numeric, 2)::float8, COUNT(*)::int8
        FROM user_rating
        WHERE title_id = $1
    `
	var avg *float64
	var count int64
	if err := r.db.QueryRow(ctx, query, titleID).Scan(&avg, &count); err != nil {
		return nil, 0, fmt.Errorf("aggregate ratings: %w", err)
	}
	return avg, count, nil
}

// HighRater is a user who rated a title at or above a threshold.
type HighRater struct {
	UserID   string
	Username string
	Value    int
	RatedAt  time.Time
}

// HighRaters lists users who rated the title at or above minValue,
// strongest vote first.
func (r *RatingsRepository) HighRaters(ctx context.Context, titleID string, minValue int) ([]HighRater, error) {
	rows, err := r.db.Query(ctx, `
        SELECT u.user_id, u.username, ur.rating_value, ur.rated_at
        FROM app_user u
        JOIN user_rating ur ON ur.user_id = u.user_id
        WHERE ur.title_id = $1 AND ur.rating_value >= $2
        ORDER BY ur.rating_value DESC, ur.rated_at DESC, u.username
    `, titleID, minValue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	raters := make([]HighRater, 0)
	for rows.Next() {
		var hr HighRater
		if err := rows.Scan(&hr.UserID, &hr.Username, &hr.Value, &hr.RatedAt); err != nil {
			return nil, err
		}
		raters = append(raters, hr)
	}
	return raters, rows.Err()
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var rating domain.Rating
	err := row.Scan(
		&rating.ID,
		&rating.UserID,
		&rating.TitleID,
		&rating.Value,
		&rating.ReviewText,
		&rating.RatedAt,
	)
	if err != nil {
		return domain.Rating{}, err
	}
	return rating, nil
}
