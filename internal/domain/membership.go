package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// TopicAttendeeUpdate is the notification topic carrying attendee counts.
const TopicAttendeeUpdate = "attendeeUpdate"

// Intent is a requested membership transition for an (event, user) pair.
type Intent string

const (
	IntentJoin  Intent = "JOIN"
	IntentLeave Intent = "LEAVE"
)

// Valid reports whether the intent is known.
func (i Intent) Valid() bool {
	return i == IntentJoin || i == IntentLeave
}

// AttendeeUpdate is the payload fanned out after a membership change.
type AttendeeUpdate struct {
	EventID       Identifier `json:"eventId"`
	AttendeeCount int        `json:"attendeeCount"`
}

// ErrEmptyIdentifier is returned for missing or blank ids.
var ErrEmptyIdentifier = errors.New("identifier is empty")

// CanonicalID is the comparable form of an opaque id: surrounding space is
// trimmed and letters are folded to lower case. Every id this service issues
// is a lower-case UUID or ObjectID hex string, so folding never changes one of
// them, but two caller-supplied ids that differ only in case name the same
// event or user.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Identifier is an externally supplied id. It keeps the JSON form the caller
// used so notifications can echo it, and a canonical string used for every
// comparison and store lookup.
type Identifier struct {
	raw       json.RawMessage
	canonical string
}

// NewIdentifier builds an identifier from a plain string such as a path parameter.
func NewIdentifier(id string) Identifier {
	raw, _ := json.Marshal(id)
	return Identifier{raw: raw, canonical: CanonicalID(id)}
}

// ParseIdentifier accepts a JSON string, number, or {"$oid": "..."} object.
func ParseIdentifier(raw json.RawMessage) (Identifier, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Identifier{}, ErrEmptyIdentifier
	}

	var canonical string
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Identifier{}, err
		}
		canonical = CanonicalID(s)
	case '{':
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(trimmed, &oid); err != nil {
			return Identifier{}, err
		}
		canonical = CanonicalID(oid.OID)
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return Identifier{}, errors.New("identifier must be a string, number or object id")
		}
		canonical = n.String()
	}
	if canonical == "" {
		return Identifier{}, ErrEmptyIdentifier
	}

	return Identifier{raw: append(json.RawMessage(nil), trimmed...), canonical: canonical}, nil
}

// String returns the canonical form.
func (i Identifier) String() string {
	return i.canonical
}

// IsZero reports whether the identifier was never set.
func (i Identifier) IsZero() bool {
	return i.canonical == ""
}

// MarshalJSON writes the identifier in the form it was supplied.
func (i Identifier) MarshalJSON() ([]byte, error) {
	if len(i.raw) == 0 {
		return []byte("null"), nil
	}
	return i.raw, nil
}

// UnmarshalJSON parses via ParseIdentifier.
func (i *Identifier) UnmarshalJSON(data []byte) error {
	parsed, err := ParseIdentifier(data)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
