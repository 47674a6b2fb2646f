package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/event-service/internal/domain"
)

// Client-emitted event names.
const (
	EventJoin  = "joinEvent"
	EventLeave = "leaveEvent"
)

// Frame is a named message with a JSON payload, in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ErrMalformedFrame is returned for frames that cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// DecodeFrame parses an inbound websocket message.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.Event == "" {
		return Frame{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return frame, nil
}

// EncodeFrame serializes an outbound message.
func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

// IntentFor maps a client event name to a membership intent.
func IntentFor(event string) (domain.Intent, bool) {
	switch event {
	case EventJoin:
		return domain.IntentJoin, true
	case EventLeave:
		return domain.IntentLeave, true
	}
	return "", false
}

// MembershipArgs extracts the event and user ids. Data is either the
// positional form [eventId, userId] or {"eventId": ..., "userId": ...}.
func (f Frame) MembershipArgs() (eventID, userID domain.Identifier, err error) {
	trimmed := bytes.TrimSpace(f.Data)
	if len(trimmed) == 0 {
		return eventID, userID, fmt.Errorf("%w: missing data", ErrMalformedFrame)
	}

	var rawEvent, rawUser json.RawMessage
	switch trimmed[0] {
	case '[':
		var args []json.RawMessage
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return eventID, userID, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if len(args) < 2 {
			return eventID, userID, fmt.Errorf("%w: expected [eventId, userId]", ErrMalformedFrame)
		}
		rawEvent, rawUser = args[0], args[1]
	case '{':
		var args struct {
			EventID json.RawMessage `json:"eventId"`
			UserID  json.RawMessage `json:"userId"`
		}
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return eventID, userID, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		rawEvent, rawUser = args.EventID, args.UserID
	default:
		return eventID, userID, fmt.Errorf("%w: unsupported data", ErrMalformedFrame)
	}

	if eventID, err = domain.ParseIdentifier(rawEvent); err != nil {
		return domain.Identifier{}, domain.Identifier{}, fmt.Errorf("eventId: %w", err)
	}
	if userID, err = domain.ParseIdentifier(rawUser); err != nil {
		return domain.Identifier{}, domain.Identifier{}, fmt.Errorf("userId: %w", err)
	}
	return eventID, userID, nil
}
