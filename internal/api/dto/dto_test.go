package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: `"2026-05-01T18:30:00Z"`, want: time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)},
		{raw: `"2026-05-01T20:30:00+02:00"`, want: time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)},
		{raw: `"2026-05-01"`, want: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{raw: `"2026-05-01T18:30"`, want: time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)},
		{raw: `""`},
		{raw: `null`},
		{raw: `"next tuesday"`, wantErr: true},
		{raw: `12`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.raw), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(d.Time), "got %v", d.Time)
		})
	}
}

func TestValidate_CreateEventRequest(t *testing.T) {
	var req CreateEventRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Gig","category":"Opera"}`), &req))

	err := Validate(req)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	assert.Equal(t, "required", domainErr.Details["description"])
	assert.Equal(t, "required", domainErr.Details["eventDate"])
	assert.Equal(t, "eventCategory", domainErr.Details["category"])
	assert.NotContains(t, domainErr.Details, "name")

	require.NoError(t, json.Unmarshal([]byte(`{
		"name":"Gig","description":"Loud","eventDate":"2026-05-01","location":"Club","category":"music"
	}`), &req))
	assert.NoError(t, Validate(req))

	input := req.ToInput()
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), input.EventDate)
	assert.Equal(t, "music", input.Category)
}

func TestValidate_SignUpRequest(t *testing.T) {
	err := Validate(SignUpRequest{Name: "Ada", Email: "not-an-email", Password: "123"})
	domainErr := apperrors.ToDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, "email", domainErr.Details["email"])
	assert.Equal(t, "min", domainErr.Details["password"])

	assert.NoError(t, Validate(SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "123456"}))
}

func TestFilterEventsRequest_ToInput(t *testing.T) {
	var req FilterEventsRequest
	require.NoError(t, json.Unmarshal([]byte(`{"startDate":"2026-01-01"}`), &req))
	input := req.ToInput()
	require.NotNil(t, input.StartDate)
	assert.Nil(t, input.EndDate)
	assert.Empty(t, input.Category)
}
