package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventCategory(t *testing.T) {
	c, err := ParseEventCategory("music")
	require.NoError(t, err)
	assert.Equal(t, EventCategoryMusic, c)

	c, err = ParseEventCategory("  ")
	require.NoError(t, err)
	assert.Equal(t, EventCategoryOther, c)

	_, err = ParseEventCategory("karaoke")
	assert.Error(t, err)
}

func TestParseEventStatus(t *testing.T) {
	s, err := ParseEventStatus("CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, EventStatusCancelled, s)

	s, err = ParseEventStatus("")
	require.NoError(t, err)
	assert.Equal(t, EventStatusActive, s)

	_, err = ParseEventStatus("postponed")
	assert.Error(t, err)
}

func TestEventAttendees(t *testing.T) {
	event := &Event{CreatorID: "Owner", Attendees: []string{"u1", "u2"}}

	assert.True(t, event.HasAttendee(" U1 "))
	assert.False(t, event.HasAttendee("u3"))
	assert.Equal(t, []string{"u2"}, event.WithoutAttendee("U1"))
	assert.Equal(t, []string{"u1", "u2"}, event.Attendees)
	assert.Equal(t, 2, event.AttendeeCount())
	assert.True(t, event.IsCreator("owner"))
}

func TestEventClone(t *testing.T) {
	event := &Event{ID: "e1", Attendees: []string{"u1"}}
	cp := event.Clone()
	cp.Attendees[0] = "changed"
	cp.Attendees = append(cp.Attendees, "u2")

	assert.Equal(t, []string{"u1"}, event.Attendees)
	assert.Nil(t, (*Event)(nil).Clone())
}
