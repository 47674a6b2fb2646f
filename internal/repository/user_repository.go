package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/event-service/internal/domain"
)

const pgUniqueViolation = "23505"

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDs returns the users among ids that exist, in no particular order.
	// Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	AddUpcomingEvent(ctx context.Context, userID, eventID string) error
	RemoveUpcomingEvent(ctx context.Context, userID, eventID string) error
	// ArchiveEvent moves eventID from the user's upcoming to past events. It
	// is a no-op when the event is not upcoming for the user.
	ArchiveEvent(ctx context.Context, userID, eventID string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email, password_hash)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
	).Scan(&user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, past_events, upcoming_events, created_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, past_events, upcoming_events, created_at
        FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, past_events, upcoming_events, created_at
        FROM users WHERE id = ANY($1)`

	result := []domain.User{}
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.PastEvents,
			&user.UpcomingEvents,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.PastEvents,
		&user.UpcomingEvents,
		&user.CreatedAt,
	); err != nil {
		return nil, translatePgError(err)
	}
	return &user, nil
}

func (r *userRepository) AddUpcomingEvent(ctx context.Context, userID, eventID string) error {
	const query = `
        UPDATE users SET upcoming_events = CASE
            WHEN $2 = ANY(upcoming_events) THEN upcoming_events
            ELSE array_append(upcoming_events, $2) END
        WHERE id=$1`
	return r.execExpectingRow(ctx, query, userID, eventID)
}

func (r *userRepository) RemoveUpcomingEvent(ctx context.Context, userID, eventID string) error {
	const query = `UPDATE users SET upcoming_events = array_remove(upcoming_events, $2) WHERE id=$1`
	return r.execExpectingRow(ctx, query, userID, eventID)
}

func (r *userRepository) ArchiveEvent(ctx context.Context, userID, eventID string) error {
	const query = `
        UPDATE users SET
            upcoming_events = array_remove(upcoming_events, $2),
            past_events = CASE
                WHEN $2 = ANY(past_events) THEN past_events
                ELSE array_append(past_events, $2) END
        WHERE id=$1 AND $2 = ANY(upcoming_events)`
	_, err := r.pool.Exec(ctx, query, userID, eventID)
	return err
}

func (r *userRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
