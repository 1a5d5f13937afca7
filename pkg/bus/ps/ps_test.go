package ps_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/envis10n/go-grapevine/pkg/bus"
	"github.com/envis10n/go-grapevine/pkg/bus/ps"
	"github.com/envis10n/go-grapevine/pkg/wire"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

func recvNote(t *testing.T, sub *bus.Subscription) bus.Note {
	t.Helper()
	select {
	case n, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription channel closed while waiting for a note")
		}
		return n
	case <-time.After(1 * time.Second):
		t.Fatal("no note arrived")
		return bus.Note{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := ps.New(testLogger, 0)
	defer b.Close()

	sub, err := b.Subscribe(bus.TopicConnected)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Cancel()

	b.Publish(bus.Note{Topic: bus.TopicConnected})

	n := recvNote(t, sub)
	if n.Topic != bus.TopicConnected {
		t.Errorf("Expected topic %q, got %q", bus.TopicConnected, n.Topic)
	}
}

func TestPublishToMultipleTopics(t *testing.T) {
	b := ps.New(testLogger, 0)
	defer b.Close()

	byEvent, err := b.Subscribe(wire.EventTellsReceive)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	generic, err := b.Subscribe(bus.TopicMessage)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	env := &wire.Envelope{Event: wire.EventTellsReceive}
	b.Publish(bus.Note{Topic: wire.EventTellsReceive, Env: env}, bus.TopicMessage, wire.EventTellsReceive)

	if n := recvNote(t, byEvent); n.Env != env {
		t.Error("Event-name subscriber did not receive the envelope")
	}
	if n := recvNote(t, generic); n.Env != env {
		t.Error("Generic subscriber did not receive the envelope")
	}
}

func TestSubscribeMultipleTopicsOneFeed(t *testing.T) {
	b := ps.New(testLogger, 0)
	defer b.Close()

	sub, err := b.Subscribe(bus.TopicConnected, bus.TopicAuthenticated)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(bus.Note{Topic: bus.TopicConnected})
	b.Publish(bus.Note{Topic: bus.TopicAuthenticated})

	first := recvNote(t, sub)
	second := recvNote(t, sub)
	if first.Topic != bus.TopicConnected || second.Topic != bus.TopicAuthenticated {
		t.Errorf("Expected connected then authenticated, got %q then %q", first.Topic, second.Topic)
	}
}

func TestSubscribeRequiresTopics(t *testing.T) {
	b := ps.New(testLogger, 0)
	defer b.Close()
	if _, err := b.Subscribe(); err == nil {
		t.Error("Subscribe with no topics should fail")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := ps.New(testLogger, 0)
	defer b.Close()

	sub, err := b.Subscribe(bus.TopicHeartbeat)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	sub.Cancel()
	sub.Cancel() // repeat cancel is a no-op

	b.Publish(bus.Note{Topic: bus.TopicHeartbeat})

	// The feed closes; no note should sneak through after Cancel returns.
	deadline := time.After(1 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel did not close after Cancel")
		}
	}
}

func TestCloseClosesSubscriptions(t *testing.T) {
	b := ps.New(testLogger, 0)

	sub, err := b.Subscribe(bus.TopicClosed)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(bus.Note{Topic: bus.TopicClosed})
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The note published before Close still arrives, then the feed ends.
	n := recvNote(t, sub)
	if n.Topic != bus.TopicClosed {
		t.Errorf("Expected topic %q, got %q", bus.TopicClosed, n.Topic)
	}
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("Expected channel close after Close, got another note")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("subscription channel did not close after Close")
	}

	// Operations after Close are inert.
	b.Publish(bus.Note{Topic: bus.TopicClosed})
	if _, err := b.Subscribe(bus.TopicClosed); err == nil {
		t.Error("Subscribe after Close should fail")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}
