package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/event-service/internal/domain"
)

// EventFilter captures listing parameters. Nil fields are ignored.
type EventFilter struct {
	CreatorID *string
	Category  *domain.EventCategory
	// From and To bound EventDate inclusively.
	From *time.Time
	To   *time.Time
	// Before bounds EventDate exclusively.
	Before   *time.Time
	SortDesc bool
	Limit    int
	Offset   int
}

// EventRepository encapsulates event persistence.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// UpdateDetails writes descriptive fields only; attendees and creator are untouched.
	UpdateDetails(ctx context.Context, event *domain.Event) error
	// SaveAttendees replaces the attendee set if the stored version still equals
	// expectedVersion, returning the saved event. It fails with
	// domain.ErrVersionConflict when another writer got there first.
	SaveAttendees(ctx context.Context, id string, attendees []string, expectedVersion int64) (*domain.Event, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter EventFilter) ([]domain.Event, error)
}

const eventColumns = `id, name, description, event_date, location, category, status,
               creator_id, attendees, version, created_at, updated_at`

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns a Postgres-backed implementation.
func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	const query = `
        INSERT INTO events (id, name, description, event_date, location, category, status, creator_id, attendees, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0)
        RETURNING version, created_at, updated_at`

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.EventDate,
		event.Location,
		event.Category,
		event.Status,
		event.CreatorID,
		event.Attendees,
	).Scan(&event.Version, &event.CreatedAt, &event.UpdatedAt)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id=$1`
	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translatePgError(err)
	}
	return event, nil
}

func (r *eventRepository) UpdateDetails(ctx context.Context, event *domain.Event) error {
	const query = `
        UPDATE events SET name=$1, description=$2, event_date=$3, location=$4, category=$5,
            status=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		event.Name,
		event.Description,
		event.EventDate,
		event.Location,
		event.Category,
		event.Status,
		event.ID,
	).Scan(&event.UpdatedAt)
	return translatePgError(err)
}

func (r *eventRepository) SaveAttendees(ctx context.Context, id string, attendees []string, expectedVersion int64) (*domain.Event, error) {
	query := `
        UPDATE events SET attendees=$1, version=version+1, updated_at=NOW()
        WHERE id=$2 AND version=$3
        RETURNING ` + eventColumns
	if attendees == nil {
		attendees = []string{}
	}
	event, err := scanEvent(r.pool.QueryRow(ctx, query, attendees, id, expectedVersion))
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id=$1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrVersionConflict
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("event_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("event_date <= $%d", len(args)))
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		clauses = append(clauses, fmt.Sprintf("event_date < $%d", len(args)))
	}

	order := "ASC"
	if filter.SortDesc {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY event_date %s`,
		eventColumns, strings.Join(clauses, " AND "), order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var event domain.Event
	if err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.EventDate,
		&event.Location,
		&event.Category,
		&event.Status,
		&event.CreatorID,
		&event.Attendees,
		&event.Version,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}

func translatePgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
