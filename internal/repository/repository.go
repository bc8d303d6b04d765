package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// DB is the subset of pgx behaviour the repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same queries run inside and
// outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories over one DB handle.
type Repository struct {
	Users   *UsersRepository
	Titles  *TitlesRepository
	Genres  *GenresRepository
	Ratings *RatingsRepository
	People  *PeopleRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithDB(st.Pool())
}

// NewWithPool constructs repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return NewWithDB(pool)
}

// NewWithDB binds repositories to any DB, pool or transaction.
func NewWithDB(db DB) *Repository {
	return &Repository{
		Users:   &UsersRepository{db: db},
		Titles:  &TitlesRepository{db: db},
		Genres:  &GenresRepository{db: db},
		Ratings: &RatingsRepository{db: db},
		People:  &PeopleRepository{db: db},
	}
}

// WithTx returns a Repository whose queries run inside the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return NewWithDB(tx)
}
