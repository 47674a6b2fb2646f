package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantCanonical string
		wantErr       bool
	}{
		{name: "string", raw: `"65F1A2b3c4d5e6f708091a2b"`, wantCanonical: "65f1a2b3c4d5e6f708091a2b"},
		{name: "padded string", raw: `"  u1 "`, wantCanonical: "u1"},
		{name: "number", raw: `42`, wantCanonical: "42"},
		{name: "object id", raw: `{"$oid":"65F1A2B3C4D5E6F708091A2B"}`, wantCanonical: "65f1a2b3c4d5e6f708091a2b"},
		{name: "null", raw: `null`, wantErr: true},
		{name: "blank string", raw: `"   "`, wantErr: true},
		{name: "bool", raw: `true`, wantErr: true},
		{name: "array", raw: `["a"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentifier(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCanonical, id.String())
		})
	}
}

func TestIdentifier_EchoesSuppliedForm(t *testing.T) {
	numeric, err := ParseIdentifier(json.RawMessage(`7`))
	require.NoError(t, err)

	out, err := json.Marshal(AttendeeUpdate{EventID: numeric, AttendeeCount: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventId":7,"attendeeCount":2}`, string(out))

	out, err = json.Marshal(AttendeeUpdate{EventID: NewIdentifier("Ev-1"), AttendeeCount: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventId":"Ev-1","attendeeCount":0}`, string(out))
}

func TestIdentifier_CanonicalEquality(t *testing.T) {
	a, err := ParseIdentifier(json.RawMessage(`" ABC "`))
	require.NoError(t, err)
	b := NewIdentifier("abc")
	assert.Equal(t, a.String(), b.String())
}

func TestCanonicalID_KeepsIssuedIDs(t *testing.T) {
	for _, id := range []string{uuid.NewString(), "65f1c2a9b4d3e8f7a6b5c4d3"} {
		assert.Equal(t, id, CanonicalID(id))
	}
	assert.Equal(t, CanonicalID("65F1C2A9B4D3E8F7A6B5C4D3"), CanonicalID(" 65f1c2a9b4d3e8f7a6b5c4d3 "))
}

func TestIdentifier_UnmarshalJSON(t *testing.T) {
	var payload struct {
		ID Identifier `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"X1"}`), &payload))
	assert.Equal(t, "x1", payload.ID.String())

	require.Error(t, json.Unmarshal([]byte(`{"id":null}`), &payload))
}

func TestIntent_Valid(t *testing.T) {
	assert.True(t, IntentJoin.Valid())
	assert.True(t, IntentLeave.Valid())
	assert.False(t, Intent("SWAP").Valid())
}
