package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/repository"
)

// ArchiveWorker moves events whose date has passed from each attendee's
// upcomingEvents to pastEvents.
type ArchiveWorker struct {
	events   repository.EventRepository
	users    repository.UserRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	since    *time.Time
}

// NewArchiveWorker builds the worker. A non-positive interval disables Run.
func NewArchiveWorker(events repository.EventRepository, users repository.UserRepository, interval time.Duration, logger *zap.Logger) *ArchiveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveWorker{
		events:   events,
		users:    users,
		interval: interval,
		logger:   logger.Named("archive"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.Info("archive worker disabled")
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Warn("archive sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep archives events that finished since the previous successful sweep and
// returns how many events it processed.
func (w *ArchiveWorker) Sweep(ctx context.Context) (int, error) {
	now := w.now()
	finished, err := w.events.List(ctx, repository.EventFilter{From: w.since, Before: &now})
	if err != nil {
		return 0, err
	}

	for _, event := range finished {
		for _, userID := range event.Attendees {
			if err := w.users.ArchiveEvent(ctx, userID, event.ID); err != nil {
				return 0, err
			}
		}
	}

	w.since = &now
	if len(finished) > 0 {
		w.logger.Info("archived finished events", zap.Int("count", len(finished)))
	}
	return len(finished), nil
}
