package dto

import (
	"time"

	"github.com/spec-kit/event-service/internal/domain"
)

// SignUpRequest payload for new users.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// SignInRequest payload for login.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of a user. The password hash never leaves
// the service.
type UserResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	PastEvents     []string `json:"pastEvents"`
	UpcomingEvents []string `json:"upcomingEvents"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		PastEvents:     orEmpty(u.PastEvents),
		UpcomingEvents: orEmpty(u.UpcomingEvents),
	}
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
