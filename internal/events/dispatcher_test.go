package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_DeliversToSubscribersOfType(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	var joined, left []Event
	d.Subscribe(EventAttendeeJoined, func(_ context.Context, e Event) error {
		joined = append(joined, e)
		return nil
	})
	d.Subscribe(EventAttendeeLeft, func(_ context.Context, e Event) error {
		left = append(left, e)
		return nil
	})

	evt := New(EventAttendeeJoined, "e1", "u1", AttendeePayload{UserID: "u1", AttendeeCount: 1})
	require.NoError(t, d.Publish(context.Background(), evt))

	require.Len(t, joined, 1)
	assert.Empty(t, left)
	assert.Equal(t, "e1", joined[0].EventID)
	assert.NotEmpty(t, joined[0].ID)
	assert.False(t, joined[0].Timestamp.IsZero())
}

func TestDispatcher_FailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	calls := 0
	d.Subscribe(EventDeleted, func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	d.Subscribe(EventDeleted, func(context.Context, Event) error {
		calls++
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), New(EventDeleted, "e1", "", nil)))
	assert.Equal(t, 2, calls)
}
