package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventCategory classifies events.
type EventCategory string

const (
	EventCategoryMusic      EventCategory = "Music"
	EventCategoryWorkshop   EventCategory = "Workshop"
	EventCategoryConference EventCategory = "Conference"
	EventCategoryWebinar    EventCategory = "Webinar"
	EventCategoryMeetup     EventCategory = "Meetup"
	EventCategorySports     EventCategory = "Sports"
	EventCategoryOther      EventCategory = "Other"
)

var eventCategories = []EventCategory{
	EventCategoryMusic,
	EventCategoryWorkshop,
	EventCategoryConference,
	EventCategoryWebinar,
	EventCategoryMeetup,
	EventCategorySports,
	EventCategoryOther,
}

// ParseEventCategory resolves a category name case-insensitively. Empty input yields Other.
func ParseEventCategory(raw string) (EventCategory, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return EventCategoryOther, nil
	}
	for _, c := range eventCategories {
		if strings.EqualFold(string(c), raw) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown event category %q", raw)
}

// EventStatus enumerates lifecycle states for events.
type EventStatus string

const (
	EventStatusActive    EventStatus = "Active"
	EventStatusCompleted EventStatus = "Completed"
	EventStatusCancelled EventStatus = "Cancelled"
)

// ParseEventStatus resolves a status name case-insensitively. Empty input yields Active.
func ParseEventStatus(raw string) (EventStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return EventStatusActive, nil
	}
	for _, s := range []EventStatus{EventStatusActive, EventStatusCompleted, EventStatusCancelled} {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown event status %q", raw)
}

// Event is the aggregate owning the attendee set.
type Event struct {
	ID          string
	Name        string
	Description string
	EventDate   time.Time
	Location    string
	Category    EventCategory
	Status      EventStatus
	CreatorID   string
	// Attendees holds canonical user ids, each at most once.
	Attendees []string
	// Version is the revision of Attendees; every attendee save increments it.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAttendee reports whether userID is a member, comparing canonical forms.
func (e *Event) HasAttendee(userID string) bool {
	userID = CanonicalID(userID)
	for _, a := range e.Attendees {
		if CanonicalID(a) == userID {
			return true
		}
	}
	return false
}

// WithoutAttendee returns the attendee list minus every entry matching userID.
func (e *Event) WithoutAttendee(userID string) []string {
	userID = CanonicalID(userID)
	kept := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if CanonicalID(a) != userID {
			kept = append(kept, a)
		}
	}
	return kept
}

// AttendeeCount returns the size of the attendee set.
func (e *Event) AttendeeCount() int {
	return len(e.Attendees)
}

// IsCreator reports whether userID created the event.
func (e *Event) IsCreator(userID string) bool {
	return CanonicalID(e.CreatorID) == CanonicalID(userID)
}

// Clone returns a deep copy so callers can mutate attendees without aliasing.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Attendees = append([]string{}, e.Attendees...)
	return &cp
}
