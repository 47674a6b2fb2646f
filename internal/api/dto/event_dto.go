package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/service"
)

// Date accepts RFC 3339 timestamps as well as bare dates like 2026-05-01.
type Date struct {
	time.Time
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// UnmarshalJSON parses any of the accepted layouts. Empty strings and null
// leave the value zero.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		if string(data) == "null" {
			return nil
		}
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

// Ptr returns nil for a missing or zero date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// CreateEventRequest payload.
type CreateEventRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	EventDate   *Date  `json:"eventDate" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Category    string `json:"category" validate:"omitempty,eventCategory"`
	Status      string `json:"status" validate:"omitempty,eventStatus"`
}

// ToInput maps the request to service input.
func (r CreateEventRequest) ToInput() service.CreateEventInput {
	input := service.CreateEventInput{
		Name:        r.Name,
		Description: r.Description,
		Location:    r.Location,
		Category:    r.Category,
		Status:      r.Status,
	}
	if t := r.EventDate.Ptr(); t != nil {
		input.EventDate = *t
	}
	return input
}

// UpdateEventRequest payload. Omitted fields keep their value.
type UpdateEventRequest struct {
	Name        string `json:"name" validate:"omitempty,max=200"`
	Description string `json:"description"`
	EventDate   *Date  `json:"eventDate"`
	Location    string `json:"location"`
	Category    string `json:"category" validate:"omitempty,eventCategory"`
	Status      string `json:"status" validate:"omitempty,eventStatus"`
}

// ToInput maps the request to service input.
func (r UpdateEventRequest) ToInput() service.UpdateEventInput {
	return service.UpdateEventInput{
		Name:        r.Name,
		Description: r.Description,
		EventDate:   r.EventDate.Ptr(),
		Location:    r.Location,
		Category:    r.Category,
		Status:      r.Status,
	}
}

// FilterEventsRequest payload.
type FilterEventsRequest struct {
	Category  string `json:"category" validate:"omitempty,eventCategory"`
	StartDate *Date  `json:"startDate"`
	EndDate   *Date  `json:"endDate"`
}

// ToInput maps the request to service input.
func (r FilterEventsRequest) ToInput() service.FilterEventsInput {
	return service.FilterEventsInput{
		Category:  r.Category,
		StartDate: r.StartDate.Ptr(),
		EndDate:   r.EndDate.Ptr(),
	}
}

// UserRef is a user referenced by an event. Only ID is set when the user
// could not be resolved.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func creatorRef(id string, users service.UserDirectory) UserRef {
	ref := UserRef{ID: id}
	if user, ok := users.Lookup(id); ok {
		ref.Name = user.Name
	}
	return ref
}

func attendeeRef(id string, users service.UserDirectory) UserRef {
	ref := UserRef{ID: id}
	if user, ok := users.Lookup(id); ok {
		ref.Name = user.Name
		ref.Email = user.Email
	}
	return ref
}

// EventResponse is the public view of an event in listings.
type EventResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	EventDate     time.Time `json:"eventDate"`
	Location      string    `json:"location"`
	Category      string    `json:"category"`
	Status        string    `json:"status"`
	Creator       UserRef   `json:"creator"`
	Attendees     []string  `json:"attendees"`
	AttendeeCount int       `json:"attendeeCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewEventResponse maps a domain event, naming its creator when users
// resolves it.
func NewEventResponse(e *domain.Event, users service.UserDirectory) EventResponse {
	return EventResponse{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		EventDate:     e.EventDate,
		Location:      e.Location,
		Category:      string(e.Category),
		Status:        string(e.Status),
		Creator:       creatorRef(e.CreatorID, users),
		Attendees:     orEmpty(e.Attendees),
		AttendeeCount: e.AttendeeCount(),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// NewEventResponses maps a list of events.
func NewEventResponses(events []domain.Event, users service.UserDirectory) []EventResponse {
	items := make([]EventResponse, 0, len(events))
	for i := range events {
		items = append(items, NewEventResponse(&events[i], users))
	}
	return items
}

// EventDetailResponse is the single-event view with attendees expanded.
type EventDetailResponse struct {
	EventResponse
	Attendees []UserRef `json:"attendees"`
}

// NewEventDetailResponse maps a domain event and the users it references.
func NewEventDetailResponse(e *domain.Event, users service.UserDirectory) EventDetailResponse {
	attendees := make([]UserRef, 0, len(e.Attendees))
	for _, id := range e.Attendees {
		attendees = append(attendees, attendeeRef(id, users))
	}
	return EventDetailResponse{
		EventResponse: NewEventResponse(e, users),
		Attendees:     attendees,
	}
}

// MembershipResponse reports the outcome of a join or leave.
type MembershipResponse struct {
	EventID       domain.Identifier `json:"eventId"`
	AttendeeCount int               `json:"attendeeCount"`
	Changed       bool              `json:"changed"`
}

// NewMembershipResponse maps a membership result.
func NewMembershipResponse(r service.MembershipResult) MembershipResponse {
	return MembershipResponse{
		EventID:       r.Update.EventID,
		AttendeeCount: r.Update.AttendeeCount,
		Changed:       r.Changed,
	}
}
