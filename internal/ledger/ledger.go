// Package ledger owns the rating write path. Every submission is one
// atomic unit of work: upsert the rating, recompute the title's cached
// aggregate behind a row lock, optionally verify, then commit. Any failure
// rolls the whole unit back so the rating set and the aggregate block
// never diverge.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/repository"
)

// Error taxonomy for rating submissions. Handlers map these to transport
// codes; ErrBusy is the only one worth retrying.
var (
	ErrValidation  = errors.New("ledger: invalid submission")
	ErrNotFound    = errors.New("ledger: user or title not found")
	ErrConsistency = errors.New("ledger: post-write verification failed")
	ErrBusy        = errors.New("ledger: title is locked by another submission")
	ErrUnavailable = errors.New("ledger: storage unavailable")
)

// Submission is one rating submission.
type Submission struct {
	UserID     string
	TitleID    string
	Value      int
	ReviewText *string
}

func (s Submission) validate() error {
	if s.UserID == "" || s.TitleID == "" {
		return fmt.Errorf("%w: user and title identifiers are required", ErrValidation)
	}
	if s.Value < 1 || s.Value > 10 {
		return fmt.Errorf("%w: rating value must be between 1 and 10", ErrValidation)
	}
	return nil
}

// Ledger executes rating submissions against the transactional store.
type Ledger struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	logger      *log.Logger
}

// New constructs a Ledger. lockTimeout bounds how long a submission waits
// for a contended title row before failing with ErrBusy; zero leaves the
// server default in place.
func New(pool *pgxpool.Pool, lockTimeout time.Duration, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{pool: pool, lockTimeout: lockTimeout, logger: logger}
}

// Submit runs the validating path: user check, title check, upsert,
// aggregate refresh, post-write verification, commit.
func (l *Ledger) Submit(ctx context.Context, sub Submission) (domain.Rating, error) {
	return l.run(ctx, sub, true)
}

// SubmitUnchecked runs the fast path. Existence checks and the post-write
// verification are skipped; referential integrity is left to the storage
// constraints, whose violations still surface as ErrNotFound.
func (l *Ledger) SubmitUnchecked(ctx context.Context, sub Submission) (domain.Rating, error) {
	return l.run(ctx, sub, false)
}

func (l *Ledger) run(ctx context.Context, sub Submission, checked bool) (domain.Rating, error) {
	// Reject malformed input before opening a transaction.
	if err := sub.validate(); err != nil {
		observeSubmission(checked, err)
		return domain.Rating{}, err
	}

	start := time.Now()
	rating, err := l.runTx(ctx, sub, checked)
	observeSubmission(checked, err)
	submissionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		l.logger.Printf("ledger: submission rolled back (user=%s title=%s): %v", sub.UserID, sub.TitleID, err)
		return domain.Rating{}, err
	}
	return rating, nil
}

func (l *Ledger) runTx(ctx context.Context, sub Submission, checked bool) (domain.Rating, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.Rating{}, classify(err)
	}
	// Rollback is a no-op once the transaction committed.
	defer func() { _ = tx.Rollback(ctx) }()

	if l.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", l.lockTimeout.Milliseconds())); err != nil {
			return domain.Rating{}, classify(err)
		}
	}

	repo := repository.NewWithDB(tx)

	if checked {
		exists, err := repo.Users.Exists(ctx, sub.UserID)
		if err != nil {
			return domain.Rating{}, classify(err)
		}
		if !exists {
			return domain.Rating{}, fmt.Errorf("%w: user %s", ErrNotFound, sub.UserID)
		}

		exists, err = repo.Titles.Exists(ctx, sub.TitleID)
		if err != nil {
			return domain.Rating{}, classify(err)
		}
		if !exists {
			return domain.Rating{}, fmt.Errorf("%w: title %s", ErrNotFound, sub.TitleID)
		}
	}

	rating, _, err := repo.Ratings.Upsert(ctx, repository.RatingUpsertParams{
		UserID:     sub.UserID,
		TitleID:    sub.TitleID,
		Value:      sub.Value,
		ReviewText: sub.ReviewText,
	})
	if err != nil {
		return domain.Rating{}, classify(err)
	}

	if err := l.refreshAggregate(ctx, repo, sub.TitleID); err != nil {
		return domain.Rating{}, err
	}

	if checked {
		stored, err := repo.Ratings.Get(ctx, sub.UserID, sub.TitleID)
		if err != nil {
			return domain.Rating{}, classify(err)
		}
		if stored.Value != sub.Value {
			return domain.Rating{}, fmt.Errorf("%w: stored value %d, submitted %d", ErrConsistency, stored.Value, sub.Value)
		}
		rating = stored
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Rating{}, classify(err)
	}
	return rating, nil
}

// refreshAggregate recomputes the title's cached average and vote count
// from the full rating set. The title row lock is taken first: once this
// submission reads the rating set, no other submission may write to it
// until we commit or roll back. The aggregate is always recomputed in
// full, never adjusted incrementally.
func (l *Ledger) refreshAggregate(ctx context.Context, repo *repository.Repository, titleID string) error {
	if err := repo.Titles.LockRow(ctx, titleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: title %s", ErrNotFound, titleID)
		}
		return classify(err)
	}

	avg, votes, err := repo.Ratings.Aggregate(ctx, titleID)
	if err != nil {
		return classify(err)
	}

	if err := repo.Titles.SetAggregate(ctx, titleID, avg, votes); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps storage-layer failures onto the submission error taxonomy.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			// lock_not_available, serialization_failure, deadlock_detected:
			// all retryable contention outcomes.
			return fmt.Errorf("%w: %s", ErrBusy, pgErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
		case "23514":
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.Message)
		case "22P02":
			// invalid_text_representation: a malformed identifier reached a
			// typed parameter.
			return fmt.Errorf("%w: %s", ErrValidation, pgErr.Message)
		}
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return fmt.Errorf("%w: %s", ErrUnavailable, pgErr.Message)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
