package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/event-service/internal/domain"
)

// memoryEventRepository keeps events in process memory. Used by tests and the
// "memory" store driver.
type memoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
	now    func() time.Time
}

// NewMemoryEventRepository returns an in-memory implementation.
func NewMemoryEventRepository() EventRepository {
	return &memoryEventRepository{
		events: make(map[string]*domain.Event),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryEventRepository) Create(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	now := r.now()
	event.Version = 0
	event.CreatedAt = now
	event.UpdatedAt = now
	r.events[event.ID] = event.Clone()
	return nil
}

func (r *memoryEventRepository) GetByID(_ context.Context, id string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return event.Clone(), nil
}

func (r *memoryEventRepository) UpdateDetails(_ context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.events[event.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Name = event.Name
	stored.Description = event.Description
	stored.EventDate = event.EventDate
	stored.Location = event.Location
	stored.Category = event.Category
	stored.Status = event.Status
	stored.UpdatedAt = r.now()
	event.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memoryEventRepository) SaveAttendees(_ context.Context, id string, attendees []string, expectedVersion int64) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	stored.Attendees = append([]string{}, attendees...)
	stored.Version++
	stored.UpdatedAt = r.now()
	return stored.Clone(), nil
}

func (r *memoryEventRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memoryEventRepository) List(_ context.Context, filter EventFilter) ([]domain.Event, error) {
	r.mu.RLock()
	result := []domain.Event{}
	for _, event := range r.events {
		if matchesFilter(event, filter) {
			result = append(result, *event.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if filter.SortDesc {
			return result[i].EventDate.After(result[j].EventDate)
		}
		return result[i].EventDate.Before(result[j].EventDate)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Event{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(event *domain.Event, filter EventFilter) bool {
	if filter.CreatorID != nil && event.CreatorID != *filter.CreatorID {
		return false
	}
	if filter.Category != nil && event.Category != *filter.Category {
		return false
	}
	if filter.From != nil && event.EventDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && event.EventDate.After(*filter.To) {
		return false
	}
	if filter.Before != nil && !event.EventDate.Before(*filter.Before) {
		return false
	}
	return true
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryUserRepository returns an in-memory implementation.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.PastEvents = nonNil(user.PastEvents)
	user.UpcomingEvents = nonNil(user.UpcomingEvents)
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryUserRepository) GetByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.User{}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := r.users[id]; ok {
			result = append(result, *cloneUser(user))
		}
	}
	return result, nil
}

func (r *memoryUserRepository) AddUpcomingEvent(_ context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, id := range user.UpcomingEvents {
		if id == eventID {
			return nil
		}
	}
	user.UpcomingEvents = append(user.UpcomingEvents, eventID)
	return nil
}

func (r *memoryUserRepository) RemoveUpcomingEvent(_ context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	kept := user.UpcomingEvents[:0]
	for _, id := range user.UpcomingEvents {
		if id != eventID {
			kept = append(kept, id)
		}
	}
	user.UpcomingEvents = kept
	return nil
}

func (r *memoryUserRepository) ArchiveEvent(_ context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return nil
	}
	upcoming := false
	kept := user.UpcomingEvents[:0]
	for _, id := range user.UpcomingEvents {
		if id == eventID {
			upcoming = true
			continue
		}
		kept = append(kept, id)
	}
	user.UpcomingEvents = kept
	if !upcoming {
		return nil
	}
	for _, id := range user.PastEvents {
		if id == eventID {
			return nil
		}
	}
	user.PastEvents = append(user.PastEvents, eventID)
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.PastEvents = append([]string{}, u.PastEvents...)
	cp.UpcomingEvents = append([]string{}, u.UpcomingEvents...)
	return &cp
}
