package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reelrate/reelrate/internal/domain"
)

// TitlesRepository provides persistence helpers for catalog titles and
// their derived aggregate block.
type TitlesRepository struct {
	db DB
}

const titleColumns = `
    title_id,
    primary_title,
    title_type,
    start_year,
    runtime_minutes,
    avg_rating,
    num_votes,
    created_at,
    updated_at
`

// TitleCreateParams bundles the fields required to create a title.
type TitleCreateParams struct {
	PrimaryTitle   string
	TitleType      string
	StartYear      *int
	RuntimeMinutes *int
}

// TitleSearchFilters encapsulates the browse/search options.
type TitleSearchFilters struct {
	Keyword   *string
	YearFrom  *int
	YearTo    *int
	TitleType *string
	Genre     *string
	Limit     int
}

// Create inserts a new title row and returns the stored entity.
func (r *TitlesRepository) Create(ctx context.Context, params TitleCreateParams) (domain.Title, error) {
	titleType := params.TitleType
	if titleType == "" {
		titleType = "movie"
	}

	query := fmt.Sprintf(`
        INSERT INTO title (title_id, primary_title, title_type, start_year, runtime_minutes)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, titleColumns)

	row := r.db.QueryRow(ctx, query, uuid.NewString(), params.PrimaryTitle, titleType, params.StartYear, params.RuntimeMinutes)
	return scanTitle(row)
}

// GetByID fetches a title, including its cached aggregate block.
func (r *TitlesRepository) GetByID(ctx context.Context, id string) (domain.Title, error) {
	query := fmt.Sprintf(`SELECT %s FROM title WHERE title_id = $1`, titleColumns)
	title, err := scanTitle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Title{}, ErrNotFound
		}
		return domain.Title{}, err
	}
	return title, nil
}

// Exists reports whether the title is present.
func (r *TitlesRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM title WHERE title_id = $1)`, id).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// UpdateMetadata fills in type/year/runtime fields, keeping existing values
// where the argument is nil. Used by the metadata enrichment flow.
func (r *TitlesRepository) UpdateMetadata(ctx context.Context, id string, titleType *string, startYear, runtimeMinutes *int) (domain.Title, error) {
	query := fmt.Sprintf(`
        UPDATE title
        SET title_type = COALESCE($2, title_type),
            start_year = COALESCE($3, start_year),
            runtime_minutes = COALESCE($4, runtime_minutes),
            updated_at = now()
        WHERE title_id = $1
        RETURNING %s
    `, titleColumns)

	title, err := scanTitle(r.db.QueryRow(ctx, query, id, titleType, startYear, runtimeMinutes))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Title{}, ErrNotFound
		}
		return domain.Title{}, err
	}
	return title, nil
}

// LockRow takes a row-level lock on the title inside the current
// transaction. All per-title aggregate recomputation must happen behind
// this lock so concurrent submissions for the same title serialize.
func (r *TitlesRepository) LockRow(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRow(ctx, `SELECT title_id FROM title WHERE title_id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// SetAggregate writes the cached aggregate block. Callers must hold the
// title row lock and recompute from the full rating set first.
func (r *TitlesRepository) SetAggregate(ctx context.Context, id string, avgRating *float64, numVotes int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE title
        SET avg_rating = $2, num_votes = $3, updated_at = now()
        WHERE title_id = $1
    `, id, avgRating, numVotes)
	if err != nil {
		return fmt.Errorf("set aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Search returns titles matching the provided filters, best rated first.
func (r *TitlesRepository) Search(ctx context.Context, filters TitleSearchFilters) ([]domain.Title, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]any, 0)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Keyword != nil && strings.TrimSpace(*filters.Keyword) != "" {
		where = append(where, fmt.Sprintf("primary_title ILIKE %s", arg("%"+strings.TrimSpace(*filters.Keyword)+"%")))
	}
	if filters.YearFrom != nil {
		where = append(where, fmt.Sprintf("start_year >= %s", arg(*filters.YearFrom)))
	}
	if filters.YearTo != nil {
		where = append(where, fmt.Sprintf("start_year <= %s", arg(*filters.YearTo)))
	}
	if filters.TitleType != nil && strings.TrimSpace(*filters.TitleType) != "" {
		where = append(where, fmt.Sprintf("title_type = %s", arg(strings.TrimSpace(*filters.TitleType))))
	}
	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		genre := arg(strings.TrimSpace(*filters.Genre))
		where = append(where, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM title_genre tg
            JOIN genre_lookup g ON g.genre_id = tg.genre_id
            WHERE tg.title_id = title.title_id AND g.genre_name ILIKE %s)`, genre))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(titleColumns)
	queryBuilder.WriteString(" FROM title")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY avg_rating DESC NULLS LAST, num_votes DESC, primary_title, title_id")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	return r.list(ctx, queryBuilder.String(), args...)
}

// MostRated returns titles ordered by accumulated vote count, busiest
// first. Unrated titles sort last.
func (r *TitlesRepository) MostRated(ctx context.Context, limit int) ([]domain.Title, error) {
	query := `
        SELECT ` + titleColumns + `
        FROM title
        ORDER BY num_votes DESC, avg_rating DESC NULLS LAST, primary_title, title_id
        LIMIT $1
    `
	return r.list(ctx, query, clampLimit(limit))
}

// AboveAverage returns rated titles whose cached average sits at or above
// the mean of all titles' cached averages. Unrated titles neither qualify
// nor drag the mean down.
func (r *TitlesRepository) AboveAverage(ctx context.Context, limit int) ([]domain.Title, error) {
	query := `
        SELECT ` + titleColumns + `
        FROM title
        WHERE avg_rating IS NOT NULL
          AND avg_rating >= (
            SELECT AVG(avg_rating) FROM title WHERE avg_rating IS NOT NULL
          )
        ORDER BY avg_rating DESC, num_votes DESC, title_id
        LIMIT $1
    `
	return r.list(ctx, query, clampLimit(limit))
}

func (r *TitlesRepository) list(ctx context.Context, query string, args ...any) ([]domain.Title, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Title, 0)
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, title)
	}
	return items, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

// RecommendationCandidate is a candidate title with the affinity genres it
// matched, ready for reason construction.
type RecommendationCandidate struct {
	Title         domain.Title
	MatchedGenres []string
}

// Candidates returns unrated titles sharing at least one of the given
// genres, ordered by cached average rating then vote count. The ordering
// carries a final title_id tie-break so repeated calls are stable.
func (r *TitlesRepository) Candidates(ctx context.Context, genreNames []string, excludeUserID string, limit int) ([]RecommendationCandidate, error) {
	if len(genreNames) == 0 {
		return []RecommendationCandidate{}, nil
	}

	query := fmt.Sprintf(`
        SELECT %s, array_agg(DISTINCT g.genre_name ORDER BY g.genre_name) AS matched_genres
        FROM title
        JOIN title_genre tg ON tg.title_id = title.title_id
        JOIN genre_lookup g ON g.genre_id = tg.genre_id
        WHERE g.genre_name = ANY($1)
          AND NOT EXISTS (
            SELECT 1 FROM user_rating ur
            WHERE ur.title_id = title.title_id AND ur.user_id = $2
          )
        GROUP BY title.title_id
        ORDER BY avg_rating DESC NULLS LAST, num_votes DESC, title.title_id
        LIMIT $3
    `, qualifiedTitleColumns("title"))

	rows, err := r.db.Query(ctx, query, genreNames, excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]RecommendationCandidate, 0)
	for rows.Next() {
		var c RecommendationCandidate
		err := rows.Scan(
			&c.Title.ID,
			&c.Title.PrimaryTitle,
			&c.Title.TitleType,
			&c.Title.StartYear,
			&c.Title.RuntimeMinutes,
			&c.Title.Aggregate.AvgRating,
			&c.Title.Aggregate.NumVotes,
			&c.Title.CreatedAt,
			&c.Title.UpdatedAt,
			&c.MatchedGenres,
		)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func qualifiedTitleColumns(alias string) string {
	cols := strings.Split(titleColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanTitle(row pgx.Row) (domain.Title, error) {
	var title domain.Title
	err := row.Scan(
		&title.ID,
		&title.PrimaryTitle,
		&title.TitleType,
		&title.StartYear,
		&title.RuntimeMinutes,
		&title.Aggregate.AvgRating,
		&title.Aggregate.NumVotes,
		&title.CreatedAt,
		&title.UpdatedAt,
	)
	if err != nil {
		return domain.Title{}, err
	}
	return title, nil
}
