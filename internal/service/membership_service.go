package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/repository"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// Broadcaster delivers a notification to every connected observer.
type Broadcaster interface {
	BroadcastAll(ctx context.Context, topic string, payload any) error
}

// MembershipResult describes the outcome of a JOIN or LEAVE.
type MembershipResult struct {
	Update domain.AttendeeUpdate
	// Changed is true when the attendee set was modified.
	Changed bool
	// Broadcast is true when an attendeeUpdate notification was delivered.
	Broadcast bool
}

// MembershipDependencies encapsulates collaborators for MembershipService.
type MembershipDependencies struct {
	Events      repository.EventRepository
	Broadcaster Broadcaster
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// MembershipService applies JOIN/LEAVE intents to an event's attendee set and
// fans out the resulting count.
type MembershipService struct {
	events             repository.EventRepository
	broadcaster        Broadcaster
	dispatcher         events.Dispatcher
	logger             *zap.Logger
	metrics            *observability.Metrics
	maxRetries         int
	broadcastNoopLeave bool
}

// NewMembershipService builds the service.
func NewMembershipService(cfg config.MembershipConfig, deps MembershipDependencies) *MembershipService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &MembershipService{
		events:             deps.Events,
		broadcaster:        deps.Broadcaster,
		dispatcher:         deps.Dispatcher,
		logger:             logger.Named("membership"),
		metrics:            deps.Metrics,
		maxRetries:         maxRetries,
		broadcastNoopLeave: cfg.BroadcastNoopLeave,
	}
}

// Join adds userID to the event's attendees.
func (s *MembershipService) Join(ctx context.Context, eventID, userID domain.Identifier) (MembershipResult, error) {
	return s.Apply(ctx, eventID, userID, domain.IntentJoin)
}

// Leave removes userID from the event's attendees.
func (s *MembershipService) Leave(ctx context.Context, eventID, userID domain.Identifier) (MembershipResult, error) {
	return s.Apply(ctx, eventID, userID, domain.IntentLeave)
}

// Apply runs a membership intent. Each attempt reads the event, computes the
// next attendee set and saves it only if the stored version is unchanged; a
// version conflict triggers a fresh attempt, up to maxRetries retries.
func (s *MembershipService) Apply(ctx context.Context, eventID, userID domain.Identifier, intent domain.Intent) (MembershipResult, error) {
	if !intent.Valid() {
		return MembershipResult{}, apperrors.NewValidationError("invalid membership intent", map[string]any{"intent": string(intent)})
	}
	if eventID.IsZero() || userID.IsZero() {
		return MembershipResult{}, apperrors.NewValidationError("eventId and userId are required", nil)
	}

	log := s.logger.With(
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
		zap.String("intent", string(intent)),
	)

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		event, err := s.events.GetByID(ctx, eventID.String())
		if err != nil {
			return MembershipResult{}, s.fail(log, intent, err)
		}

		next, changed := s.nextAttendees(event, userID.String(), intent)
		if next == nil {
			s.metrics.RecordMembership(string(intent), "noop")
			log.Debug("membership unchanged")
			return MembershipResult{
				Update: domain.AttendeeUpdate{EventID: eventID, AttendeeCount: event.AttendeeCount()},
			}, nil
		}

		saved, err := s.events.SaveAttendees(ctx, event.ID, next, event.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.RecordMembership(string(intent), "retry")
			log.Debug("attendee version conflict, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return MembershipResult{}, s.fail(log, intent, err)
		}

		result := MembershipResult{
			Update:  domain.AttendeeUpdate{EventID: eventID, AttendeeCount: saved.AttendeeCount()},
			Changed: changed,
		}
		result.Broadcast = s.broadcast(ctx, log, result.Update)

		if changed {
			s.metrics.RecordMembership(string(intent), "changed")
			s.publish(ctx, log, saved, userID.String(), intent)
		} else {
			s.metrics.RecordMembership(string(intent), "noop")
		}
		log.Info("membership applied",
			zap.Bool("changed", changed),
			zap.Int("attendee_count", result.Update.AttendeeCount))
		return result, nil
	}

	s.metrics.RecordMembership(string(intent), "conflict")
	log.Warn("membership retries exhausted", zap.Int("max_retries", s.maxRetries))
	return MembershipResult{}, apperrors.NewConflict("event attendees changed concurrently, try again", map[string]any{
		"eventId": eventID.String(),
	})
}

// nextAttendees returns the attendee list to persist and whether it differs
// from the current one. A nil list means nothing should be written.
func (s *MembershipService) nextAttendees(event *domain.Event, userID string, intent domain.Intent) ([]string, bool) {
	switch intent {
	case domain.IntentJoin:
		if event.HasAttendee(userID) {
			return nil, false
		}
		next := make([]string, 0, len(event.Attendees)+1)
		next = append(next, event.Attendees...)
		return append(next, userID), true
	default:
		if event.HasAttendee(userID) {
			return event.WithoutAttendee(userID), true
		}
		if !s.broadcastNoopLeave {
			return nil, false
		}
		// Rewriting the unchanged set refreshes updatedAt and keeps the
		// save-then-notify ordering of a real leave.
		return append([]string{}, event.Attendees...), false
	}
}

func (s *MembershipService) broadcast(ctx context.Context, log *zap.Logger, update domain.AttendeeUpdate) bool {
	if s.broadcaster == nil {
		return false
	}
	err := s.broadcaster.BroadcastAll(ctx, domain.TopicAttendeeUpdate, update)
	s.metrics.RecordBroadcast(err)
	if err != nil {
		log.Warn("attendee update broadcast failed", zap.Error(err))
		return false
	}
	return true
}

func (s *MembershipService) publish(ctx context.Context, log *zap.Logger, saved *domain.Event, userID string, intent domain.Intent) {
	if s.dispatcher == nil {
		return
	}
	eventType := events.EventAttendeeJoined
	if intent == domain.IntentLeave {
		eventType = events.EventAttendeeLeft
	}
	evt := events.New(eventType, saved.ID, userID, events.AttendeePayload{
		UserID:        userID,
		AttendeeCount: saved.AttendeeCount(),
		EventDate:     saved.EventDate,
	})
	if err := s.dispatcher.Publish(ctx, evt); err != nil {
		log.Warn("publish membership event failed", zap.Error(err))
	}
}

func (s *MembershipService) fail(log *zap.Logger, intent domain.Intent, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.RecordMembership(string(intent), "not_found")
		log.Info("membership on unknown event")
		return apperrors.NewNotFound("event", nil)
	}
	s.metrics.RecordMembership(string(intent), "failed")
	log.Error("membership persistence failure", zap.Error(err))
	return apperrors.NewInternalError(fmt.Errorf("apply %s: %w", intent, err))
}
