package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/repository"
	"github.com/spec-kit/event-service/internal/service"
)

func TestArchiveWorker_Sweep(t *testing.T) {
	ctx := context.Background()
	eventRepo := repository.NewMemoryEventRepository()
	userRepo := repository.NewMemoryUserRepository()

	user := &domain.User{Name: "Cy", Email: "cy@example.com"}
	require.NoError(t, userRepo.Create(ctx, user))

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	finished := &domain.Event{Name: "done", CreatorID: "c", EventDate: now.Add(-time.Hour)}
	pending := &domain.Event{Name: "soon", CreatorID: "c", EventDate: now.Add(time.Hour)}
	require.NoError(t, eventRepo.Create(ctx, finished))
	require.NoError(t, eventRepo.Create(ctx, pending))

	for _, e := range []*domain.Event{finished, pending} {
		_, err := eventRepo.SaveAttendees(ctx, e.ID, []string{user.ID}, 0)
		require.NoError(t, err)
		require.NoError(t, userRepo.AddUpcomingEvent(ctx, user.ID, e.ID))
	}

	w := NewArchiveWorker(eventRepo, userRepo, time.Minute, zap.NewNop())
	w.now = func() time.Time { return now }

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{pending.ID}, stored.UpcomingEvents)
	assert.Equal(t, []string{finished.ID}, stored.PastEvents)

	n, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveWorker_JoinAfterSweepLandsInPastEvents(t *testing.T) {
	ctx := context.Background()
	eventRepo := repository.NewMemoryEventRepository()
	userRepo := repository.NewMemoryUserRepository()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	StartNotificationWorker(service.NewNotificationService(dispatcher, userRepo, zap.NewNop()))

	user := &domain.User{Name: "Ed", Email: "ed@example.com"}
	require.NoError(t, userRepo.Create(ctx, user))
	finished := &domain.Event{Name: "done", CreatorID: "c", EventDate: time.Now().Add(-time.Hour)}
	require.NoError(t, eventRepo.Create(ctx, finished))

	n, err := NewArchiveWorker(eventRepo, userRepo, time.Minute, zap.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	membership := service.NewMembershipService(config.MembershipConfig{MaxRetries: 3}, service.MembershipDependencies{
		Events:     eventRepo,
		Dispatcher: dispatcher,
	})
	_, err = membership.Join(ctx, domain.NewIdentifier(finished.ID), domain.NewIdentifier(user.ID))
	require.NoError(t, err)

	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.UpcomingEvents)
	assert.Equal(t, []string{finished.ID}, stored.PastEvents)
}

func TestArchiveWorker_RunDisabled(t *testing.T) {
	w := NewArchiveWorker(repository.NewMemoryEventRepository(), repository.NewMemoryUserRepository(), 0, nil)
	assert.NoError(t, w.Run(context.Background()))
}

func TestArchiveWorker_RunStopsOnCancel(t *testing.T) {
	w := NewArchiveWorker(repository.NewMemoryEventRepository(), repository.NewMemoryUserRepository(), time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestNotificationWorker_TracksUpcomingEvents(t *testing.T) {
	ctx := context.Background()
	eventRepo := repository.NewMemoryEventRepository()
	userRepo := repository.NewMemoryUserRepository()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	StartNotificationWorker(service.NewNotificationService(dispatcher, userRepo, zap.NewNop()))

	user := &domain.User{Name: "Di", Email: "di@example.com"}
	require.NoError(t, userRepo.Create(ctx, user))

	eventService := service.NewEventService(eventRepo, userRepo, dispatcher, zap.NewNop())
	membership := service.NewMembershipService(config.MembershipConfig{MaxRetries: 3, BroadcastNoopLeave: true}, service.MembershipDependencies{
		Events:     eventRepo,
		Dispatcher: dispatcher,
	})

	created, err := eventService.Create(ctx, "creator", service.CreateEventInput{
		Name:        "Workshop",
		Description: "Hands on",
		EventDate:   time.Now().Add(time.Hour),
		Location:    "Lab",
	})
	require.NoError(t, err)

	_, err = membership.Join(ctx, domain.NewIdentifier(created.ID), domain.NewIdentifier(user.ID))
	require.NoError(t, err)
	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, stored.UpcomingEvents)

	require.NoError(t, eventService.Delete(ctx, "creator", created.ID))
	stored, err = userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.UpcomingEvents)

	StartNotificationWorker(nil)
}
