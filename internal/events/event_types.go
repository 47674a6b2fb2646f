package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCreated        EventType = "event_created"
	EventUpdated        EventType = "event_updated"
	EventDeleted        EventType = "event_deleted"
	EventAttendeeJoined EventType = "attendee_joined"
	EventAttendeeLeft   EventType = "attendee_left"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	EventID   string    `json:"event_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New builds an Event with a fresh id and timestamp.
func New(eventType EventType, eventID, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		EventID:   eventID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// EventCreatedPayload payload.
type EventCreatedPayload struct {
	Name      string    `json:"name"`
	EventDate time.Time `json:"event_date"`
	Category  string    `json:"category"`
}

// EventUpdatedPayload payload.
type EventUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// EventDeletedPayload payload. Attendees lists the members at deletion time.
type EventDeletedPayload struct {
	Attendees []string `json:"attendees"`
}

// AttendeePayload is carried by attendee_joined and attendee_left.
type AttendeePayload struct {
	UserID        string    `json:"user_id"`
	AttendeeCount int       `json:"attendee_count"`
	EventDate     time.Time `json:"event_date"`
}
