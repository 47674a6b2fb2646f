package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/repository"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// CreateEventInput carries the fields of a new event.
type CreateEventInput struct {
	Name        string
	Description string
	EventDate   time.Time
	Location    string
	Category    string
	Status      string
}

// UpdateEventInput carries optional field updates. Empty values keep the
// current field.
type UpdateEventInput struct {
	Name        string
	Description string
	EventDate   *time.Time
	Location    string
	Category    string
	Status      string
}

// FilterEventsInput narrows event listings by category and date range.
type FilterEventsInput struct {
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
}

// EventService manages the event lifecycle outside attendee membership.
type EventService struct {
	events     repository.EventRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewEventService builds the service. users may be nil, in which case reads
// are never populated with user details.
func NewEventService(repo repository.EventRepository, users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		events:     repo,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger.Named("events"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new event owned by creatorID.
func (s *EventService) Create(ctx context.Context, creatorID string, input CreateEventInput) (*domain.Event, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		details["description"] = "required"
	}
	if input.EventDate.IsZero() {
		details["eventDate"] = "required"
	}
	if strings.TrimSpace(input.Location) == "" {
		details["location"] = "required"
	}
	if strings.TrimSpace(creatorID) == "" {
		details["creator"] = "required"
	}
	category, err := domain.ParseEventCategory(input.Category)
	if err != nil {
		details["category"] = err.Error()
	}
	status, err := domain.ParseEventStatus(input.Status)
	if err != nil {
		details["status"] = err.Error()
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("all fields are required", details)
	}

	event := &domain.Event{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		EventDate:   input.EventDate.UTC(),
		Location:    strings.TrimSpace(input.Location),
		Category:    category,
		Status:      status,
		CreatorID:   domain.CanonicalID(creatorID),
		Attendees:   []string{},
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("create event: %w", err))
	}

	s.publish(ctx, events.New(events.EventCreated, event.ID, event.CreatorID, events.EventCreatedPayload{
		Name:      event.Name,
		EventDate: event.EventDate,
		Category:  string(event.Category),
	}))
	return event, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, domain.CanonicalID(id))
	if err != nil {
		return nil, s.mapLookupError(err, "get event")
	}
	return event, nil
}

// GetDetails returns an event together with the users it references: its
// creator and every attendee.
func (s *EventService) GetDetails(ctx context.Context, id string) (*domain.Event, UserDirectory, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ids := append([]string{event.CreatorID}, event.Attendees...)
	return event, s.directory(ctx, ids), nil
}

// CreatorsOf resolves the creators of events.
func (s *EventService) CreatorsOf(ctx context.Context, list []domain.Event) UserDirectory {
	ids := make([]string, 0, len(list))
	for i := range list {
		ids = append(ids, list[i].CreatorID)
	}
	return s.directory(ctx, ids)
}

// directory loads the users behind ids. Lookup failures degrade to an empty
// directory so callers fall back to bare ids.
func (s *EventService) directory(ctx context.Context, ids []string) UserDirectory {
	dir := UserDirectory{}
	if s.users == nil || len(ids) == 0 {
		return dir
	}
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = domain.CanonicalID(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := s.users.GetByIDs(ctx, unique)
	if err != nil {
		s.logger.Warn("resolve users failed", zap.Int("ids", len(unique)), zap.Error(err))
		return dir
	}
	for _, user := range users {
		user.PasswordHash = ""
		dir[domain.CanonicalID(user.ID)] = user
	}
	return dir
}

// Update overwrites the non-empty fields of an event created by actorID.
// Attendees and creator are never touched.
func (s *EventService) Update(ctx context.Context, actorID, id string, input UpdateEventInput) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, domain.CanonicalID(id))
	if err != nil {
		return nil, s.mapLookupError(err, "get event")
	}
	if !event.IsCreator(actorID) {
		return nil, apperrors.NewForbidden("only the event creator can modify this event")
	}

	var changed []string
	if v := strings.TrimSpace(input.Name); v != "" {
		event.Name = v
		changed = append(changed, "name")
	}
	if v := strings.TrimSpace(input.Description); v != "" {
		event.Description = v
		changed = append(changed, "description")
	}
	if input.EventDate != nil && !input.EventDate.IsZero() {
		event.EventDate = input.EventDate.UTC()
		changed = append(changed, "eventDate")
	}
	if v := strings.TrimSpace(input.Location); v != "" {
		event.Location = v
		changed = append(changed, "location")
	}
	if strings.TrimSpace(input.Category) != "" {
		category, err := domain.ParseEventCategory(input.Category)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid category", map[string]any{"category": err.Error()})
		}
		event.Category = category
		changed = append(changed, "category")
	}
	if strings.TrimSpace(input.Status) != "" {
		status, err := domain.ParseEventStatus(input.Status)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": err.Error()})
		}
		event.Status = status
		changed = append(changed, "status")
	}

	if err := s.events.UpdateDetails(ctx, event); err != nil {
		return nil, s.mapLookupError(err, "update event")
	}

	s.publish(ctx, events.New(events.EventUpdated, event.ID, domain.CanonicalID(actorID), events.EventUpdatedPayload{Fields: changed}))
	return event, nil
}

// Delete permanently removes an event created by actorID.
func (s *EventService) Delete(ctx context.Context, actorID, id string) error {
	event, err := s.events.GetByID(ctx, domain.CanonicalID(id))
	if err != nil {
		return s.mapLookupError(err, "get event")
	}
	if !event.IsCreator(actorID) {
		return apperrors.NewForbidden("only the event creator can delete this event")
	}
	if err := s.events.Delete(ctx, event.ID); err != nil {
		return s.mapLookupError(err, "delete event")
	}

	s.publish(ctx, events.New(events.EventDeleted, event.ID, domain.CanonicalID(actorID), events.EventDeletedPayload{
		Attendees: event.Attendees,
	}))
	return nil
}

// ListMine returns the events created by userID, earliest first.
func (s *EventService) ListMine(ctx context.Context, userID string) ([]domain.Event, error) {
	creator := domain.CanonicalID(userID)
	return s.list(ctx, repository.EventFilter{CreatorID: &creator})
}

// Upcoming returns events at or after now, earliest first.
func (s *EventService) Upcoming(ctx context.Context) ([]domain.Event, error) {
	now := s.now()
	return s.list(ctx, repository.EventFilter{From: &now})
}

// Past returns events before now, most recent first.
func (s *EventService) Past(ctx context.Context) ([]domain.Event, error) {
	now := s.now()
	return s.list(ctx, repository.EventFilter{Before: &now, SortDesc: true})
}

// Filter lists events by optional category and inclusive date bounds.
func (s *EventService) Filter(ctx context.Context, input FilterEventsInput) ([]domain.Event, error) {
	filter := repository.EventFilter{From: input.StartDate, To: input.EndDate}
	if strings.TrimSpace(input.Category) != "" {
		category, err := domain.ParseEventCategory(input.Category)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid category", map[string]any{"category": err.Error()})
		}
		filter.Category = &category
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, apperrors.NewValidationError("endDate must not be before startDate", nil)
	}
	return s.list(ctx, filter)
}

func (s *EventService) list(ctx context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	result, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list events: %w", err))
	}
	if result == nil {
		result = []domain.Event{}
	}
	return result, nil
}

func (s *EventService) mapLookupError(err error, op string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewNotFound("event", nil)
	}
	return apperrors.NewInternalError(fmt.Errorf("%s: %w", op, err))
}

func (s *EventService) publish(ctx context.Context, evt events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}
