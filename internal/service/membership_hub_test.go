package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/realtime"
	"github.com/spec-kit/event-service/internal/repository"
)

// blockedObserver never completes a write until closed.
type blockedObserver struct {
	once    sync.Once
	release chan struct{}
}

func (o *blockedObserver) WriteMessage(int, []byte) error {
	<-o.release
	return errors.New("closed")
}

func (o *blockedObserver) SetWriteDeadline(time.Time) error { return nil }

func (o *blockedObserver) Close() error {
	o.once.Do(func() { close(o.release) })
	return nil
}

func TestMembership_BlockedObserverDoesNotStallJoins(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	event := &domain.Event{Name: "Gig", EventDate: time.Now().Add(time.Hour), CreatorID: "c"}
	require.NoError(t, repo.Create(context.Background(), event))

	hub := realtime.NewHub(zap.NewNop(), nil)
	defer hub.CloseAll()
	hub.Register(&blockedObserver{release: make(chan struct{})})

	svc := NewMembershipService(defaultMembershipConfig(), MembershipDependencies{
		Events:      repo,
		Broadcaster: hub,
	})

	const joins = realtime.SendBuffer + 8
	done := make(chan error, 1)
	go func() {
		for i := 0; i < joins; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			_, err := svc.Join(ctx, domain.NewIdentifier(event.ID), domain.NewIdentifier(fmt.Sprintf("user-%d", i)))
			cancel()
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("joins stalled behind a blocked observer")
	}

	stored, err := repo.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Attendees, joins)
	assert.Zero(t, hub.Count())
}
