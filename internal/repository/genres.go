package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/reelrate/reelrate/internal/domain"
)

// GenresRepository manages the genre lookup table and the title-genre join.
type GenresRepository struct {
	db DB
}

// Ensure inserts the genre if missing and returns the stored row either way.
func (r *GenresRepository) Ensure(ctx context.Context, name string) (domain.Genre, error) {
	const query = `
        INSERT INTO genre_lookup (genre_id, genre_name)
        VALUES ($1,$2)
        ON CONFLICT (genre_name) DO UPDATE SET genre_name = EXCLUDED.genre_name
        RETURNING genre_id, genre_name
    `
	var genre domain.Genre
	err := r.db.QueryRow(ctx, query, uuid.NewString(), name).Scan(&genre.ID, &genre.Name)
	if err != nil {
		return domain.Genre{}, fmt.Errorf("ensure genre %q: %w", name, err)
	}
	return genre, nil
}

// Attach links a title to the named genres, creating missing genres.
func (r *GenresRepository) Attach(ctx context.Context, titleID string, names []string) error {
	for _, name := range names {
		genre, err := r.Ensure(ctx, name)
		if err != nil {
			return err
		}
		_, err = r.db.Exec(ctx, `
            INSERT INTO title_genre (title_id, genre_id)
            VALUES ($1,$2)
            ON CONFLICT DO NOTHING
        `, titleID, genre.ID)
		if err != nil {
			return fmt.Errorf("attach genre %q: %w", name, err)
		}
	}
	return nil
}

// List returns all genres ordered by name.
func (r *GenresRepository) List(ctx context.Context) ([]domain.Genre, error) {
	rows, err := r.db.Query(ctx, `SELECT genre_id, genre_name FROM genre_lookup ORDER BY genre_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := make([]domain.Genre, 0)
	for rows.Next() {
		var genre domain.Genre
		if err := rows.Scan(&genre.ID, &genre.Name); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}

// OfTitle returns the genres attached to one title.
func (r *GenresRepository) OfTitle(ctx context.Context, titleID string) ([]domain.Genre, error) {
	return r.ofTitles(ctx, []string{titleID})
}

// OfTitles returns the distinct genres attached to any of the given titles.
// This is the affinity set derivation for recommendations.
func (r *GenresRepository) OfTitles(ctx context.Context, titleIDs []string) ([]domain.Genre, error) {
	if len(titleIDs) == 0 {
		return []domain.Genre{}, nil
	}
	return r.ofTitles(ctx, titleIDs)
}

func (r *GenresRepository) ofTitles(ctx context.Context, titleIDs []string) ([]domain.Genre, error) {
	rows, err := r.db.Query(ctx, `
        SELECT DISTINCT g.genre_id, g.genre_name
        FROM genre_lookup g
        JOIN title_genre tg ON tg.genre_id = g.genre_id
        WHERE tg.title_id = ANY($1)
        ORDER BY g.genre_name
    `, titleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := make([]domain.Genre, 0)
	for rows.Next() {
		var genre domain.Genre
		if err := rows.Scan(&genre.ID, &genre.Name); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}

// TopByRating returns genres ranked by average user rating, skipping
// genres with fewer than minRatings votes.
func (r *GenresRepository) TopByRating(ctx context.Context, minRatings int64, limit int) ([]domain.GenreStats, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
        SELECT g.genre_name,
               AVG(ur.rating_value)::float8 AS avg_rating,
               COUNT(*)::int8 AS num_ratings
        FROM genre_lookup g
        JOIN title_genre tg ON tg.genre_id = g.genre_id
        JOIN user_rating ur ON ur.title_id = tg.title_id
        GROUP BY g.genre_name
        HAVING COUNT(*) >= $1
        ORDER BY avg_rating DESC, num_ratings DESC, g.genre_name
        LIMIT $2
    `, minRatings, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.GenreStats, 0)
	for rows.Next() {
		var s domain.GenreStats
		if err := rows.Scan(&s.Name, &s.AvgRating, &s.NumRatings); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
