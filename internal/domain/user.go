package domain

import "time"

// User is the domain model for people who create and attend events.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	PastEvents     []string
	UpcomingEvents []string
	CreatedAt      time.Time
}
