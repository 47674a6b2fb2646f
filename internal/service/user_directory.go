package service

import "github.com/spec-kit/event-service/internal/domain"

// UserDirectory maps canonical user ids to the users they resolved to.
type UserDirectory map[string]domain.User

// Lookup returns the user behind id, if it was resolved.
func (d UserDirectory) Lookup(id string) (domain.User, bool) {
	user, ok := d[domain.CanonicalID(id)]
	return user, ok
}
