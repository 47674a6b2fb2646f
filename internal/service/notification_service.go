package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/repository"
)

// NotificationService reacts to domain events: it logs lifecycle changes and
// keeps each user's upcomingEvents in step with event membership.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		logger:     logger.Named("notifications"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventCreated, n.handleEventCreated)
	n.dispatcher.Subscribe(events.EventUpdated, n.handleEventUpdated)
	n.dispatcher.Subscribe(events.EventDeleted, n.handleEventDeleted)
	n.dispatcher.Subscribe(events.EventAttendeeJoined, n.handleAttendeeJoined)
	n.dispatcher.Subscribe(events.EventAttendeeLeft, n.handleAttendeeLeft)
}

func (n *NotificationService) handleEventCreated(_ context.Context, event events.Event) error {
	n.logger.Info("EventCreated", zap.String("event_id", event.EventID), zap.String("creator", event.ActorID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleEventUpdated(_ context.Context, event events.Event) error {
	n.logger.Info("EventUpdated", zap.String("event_id", event.EventID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleEventDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("EventDeleted", zap.String("event_id", event.EventID))
	payload, ok := event.Payload.(events.EventDeletedPayload)
	if !ok {
		return nil
	}
	var errs []error
	for _, userID := range payload.Attendees {
		if err := n.removeUpcoming(ctx, userID, event.EventID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *NotificationService) handleAttendeeJoined(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AttendeePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Debug("AttendeeJoined", zap.String("event_id", event.EventID), zap.String("user_id", payload.UserID), zap.Int("attendee_count", payload.AttendeeCount))
	if n.users == nil {
		return nil
	}
	err := n.users.AddUpcomingEvent(ctx, payload.UserID, event.EventID)
	if errors.Is(err, domain.ErrNotFound) {
		// Realtime clients may join with ids that have no account.
		return nil
	}
	if err != nil {
		return err
	}
	// The archive sweep has already passed events dated before now, so a late
	// join is archived here.
	if !payload.EventDate.IsZero() && payload.EventDate.Before(n.now()) {
		return n.users.ArchiveEvent(ctx, payload.UserID, event.EventID)
	}
	return nil
}

func (n *NotificationService) handleAttendeeLeft(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AttendeePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Debug("AttendeeLeft", zap.String("event_id", event.EventID), zap.String("user_id", payload.UserID), zap.Int("attendee_count", payload.AttendeeCount))
	return n.removeUpcoming(ctx, payload.UserID, event.EventID)
}

func (n *NotificationService) removeUpcoming(ctx context.Context, userID, eventID string) error {
	if n.users == nil {
		return nil
	}
	err := n.users.RemoveUpcomingEvent(ctx, userID, eventID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
