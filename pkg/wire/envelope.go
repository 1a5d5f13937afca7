// wire/envelope.go
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is the frame format the Grapevine service speaks. Every message
// in either direction is one of these, serialized as a JSON object.
type Envelope struct {
	Event   string          `json:"event"`             // Event name, e.g. "tells/send"
	Ref     string          `json:"ref,omitempty"`     // Opaque correlation token, echoed back by the service
	Payload json.RawMessage `json:"payload,omitempty"` // Event-specific data
	Ts      int64           `json:"ts,omitempty"`      // Epoch milliseconds, stamped by whichever side sent the frame
	Status  string          `json:"status,omitempty"`  // "success" or a failure marker on replies; absent on server pushes
	Error   json.RawMessage `json:"error,omitempty"`   // Service-reported failure detail, verbatim
}

// NewEnvelope builds an outbound envelope. A nil payloadData leaves the
// payload field off the wire entirely; Ts is stamped later, at send time.
func NewEnvelope(event, ref string, payloadData interface{}) (*Envelope, error) {
	var payloadBytes json.RawMessage
	if payloadData != nil {
		var err error
		payloadBytes, err = json.Marshal(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload for %s envelope: %w", event, err)
		}
	}
	return &Envelope{
		Event:   event,
		Ref:     ref,
		Payload: payloadBytes,
	}, nil
}

// DecodePayload unmarshals the Envelope's Payload into the provided value (must be a pointer).
func (e *Envelope) DecodePayload(v interface{}) error {
	if e.Payload == nil || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Broadcast reports whether the envelope is a server push rather than a
// reply to something this client sent. Replies always carry a status.
func (e *Envelope) Broadcast() bool {
	return e.Status == ""
}

// RemoteError wraps the failure the service attached to a reply. The
// detail is kept as raw JSON so callers see exactly what the service said,
// whether it sent a string or a structured object.
type RemoteError struct {
	Event  string
	Status string
	Detail json.RawMessage
}

// RemoteError builds the error carried by a non-success reply envelope.
func (e *Envelope) RemoteError() *RemoteError {
	return &RemoteError{
		Event:  e.Event,
		Status: e.Status,
		Detail: e.Error,
	}
}

func (e *RemoteError) Error() string {
	detail := string(e.Detail)
	if unquoted, err := strconv.Unquote(detail); err == nil {
		detail = unquoted
	}
	if detail == "" {
		return fmt.Sprintf("%s: service replied with status %q", e.Event, e.Status)
	}
	return fmt.Sprintf("%s: service replied with status %q: %s", e.Event, e.Status, detail)
}
