package wire

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return ts
}

func TestNewEnvelope(t *testing.T) {
	t.Run("With payload", func(t *testing.T) {
		env, err := NewEnvelope(EventTellsSend, "ref-1", TellSendPayload{
			FromName: "alice",
			ToGame:   "othergame",
			ToName:   "bob",
			SentAt:   "2026-08-24T12:00:00Z",
			Message:  "hello",
		})
		if err != nil {
			t.Fatalf("NewEnvelope failed: %v", err)
		}
		if env.Event != EventTellsSend {
			t.Errorf("Expected event %q, got %q", EventTellsSend, env.Event)
		}
		if env.Ref != "ref-1" {
			t.Errorf("Expected ref %q, got %q", "ref-1", env.Ref)
		}

		var decoded TellSendPayload
		if err := env.DecodePayload(&decoded); err != nil {
			t.Fatalf("DecodePayload failed: %v", err)
		}
		if decoded.ToGame != "othergame" || decoded.Message != "hello" {
			t.Errorf("Payload round trip mismatch: %+v", decoded)
		}
	})

	t.Run("Nil payload is omitted from the wire", func(t *testing.T) {
		env, err := NewEnvelope(EventPlayersStatus, "ref-2", nil)
		if err != nil {
			t.Fatalf("NewEnvelope failed: %v", err)
		}
		raw, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if strings.Contains(string(raw), "payload") {
			t.Errorf("Expected no payload field, got %s", raw)
		}
		if err := env.DecodePayload(&struct{}{}); err != nil {
			t.Errorf("DecodePayload of empty payload should be a no-op, got %v", err)
		}
	})

	t.Run("Unmarshalable payload", func(t *testing.T) {
		if _, err := NewEnvelope(EventTellsSend, "ref-3", func() {}); err == nil {
			t.Fatal("Expected error for unmarshalable payload, got nil")
		}
	})
}

func TestEnvelopeBroadcast(t *testing.T) {
	reply := &Envelope{Event: EventTellsSend, Status: StatusSuccess}
	if reply.Broadcast() {
		t.Error("Envelope with status should not be a broadcast")
	}
	push := &Envelope{Event: EventTellsReceive}
	if !push.Broadcast() {
		t.Error("Envelope without status should be a broadcast")
	}
}

func TestRemoteError(t *testing.T) {
	t.Run("String detail", func(t *testing.T) {
		env := &Envelope{
			Event:  EventAuthenticate,
			Status: StatusFailure,
			Error:  json.RawMessage(`"invalid credentials"`),
		}
		err := env.RemoteError()
		if !strings.Contains(err.Error(), "invalid credentials") {
			t.Errorf("Expected detail in message, got %q", err.Error())
		}
		if string(err.Detail) != `"invalid credentials"` {
			t.Errorf("Detail should carry the raw service bytes, got %s", err.Detail)
		}
	})

	t.Run("Object detail", func(t *testing.T) {
		env := &Envelope{
			Event:  EventTellsSend,
			Status: StatusFailure,
			Error:  json.RawMessage(`{"code":42,"message":"game offline"}`),
		}
		err := env.RemoteError()
		if !strings.Contains(err.Error(), "game offline") {
			t.Errorf("Expected raw object in message, got %q", err.Error())
		}
	})

	t.Run("No detail", func(t *testing.T) {
		env := &Envelope{Event: EventTellsSend, Status: "unknown"}
		msg := env.RemoteError().Error()
		if !strings.Contains(msg, "unknown") {
			t.Errorf("Expected status in message, got %q", msg)
		}
	})
}

func TestNewRef(t *testing.T) {
	a, b := NewRef(), NewRef()
	if a == "" || b == "" {
		t.Fatal("NewRef returned an empty token")
	}
	if a == b {
		t.Fatalf("NewRef returned duplicate tokens: %s", a)
	}
}

func TestFormatSentAt(t *testing.T) {
	got := FormatSentAt(mustParse(t, "2026-08-24T15:30:45.123+02:00"))
	if got != "2026-08-24T13:30:45Z" {
		t.Errorf("Expected UTC whole-second timestamp, got %q", got)
	}
}
