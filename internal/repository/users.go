package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reelrate/reelrate/internal/domain"
)

// ErrDuplicateUsername indicates the handle is already taken.
var ErrDuplicateUsername = errors.New("repository: username already exists")

// UsersRepository provides persistence helpers for user accounts.
type UsersRepository struct {
	db DB
}

const userColumns = `user_id, username, email, is_admin, created_at`

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Username string
	Email    *string
	IsAdmin  bool
}

// Create inserts a new user with an app-generated identifier.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	const query = `
        INSERT INTO app_user (user_id, username, email, is_admin)
        VALUES ($1,$2,$3,$4)
        RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query, uuid.NewString(), params.Username, params.Email, params.IsAdmin)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicateUsername
		}
		return domain.User{}, err
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE user_id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Exists reports whether the user is present.
func (r *UsersRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM app_user WHERE user_id = $1)`, id).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// List returns all users ordered by handle.
func (r *UsersRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM app_user ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
