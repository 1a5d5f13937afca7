// bus/bus.go

// Package bus carries local notifications from the connection to whatever
// the application has listening. The connection publishes; it never cares
// who, if anyone, receives.
package bus

import "github.com/envis10n/go-grapevine/pkg/wire"

// Lifecycle topics published by the connection itself, kept in their own
// namespace so they cannot collide with wire event names. Wire events are
// additionally republished under their own event name and under TopicMessage.
const (
	TopicConnected     = "grapevine/connected"
	TopicAuthenticated = "grapevine/authenticated"
	TopicHeartbeat     = "grapevine/heartbeat"
	TopicParseError    = "grapevine/parse-error"
	TopicClosed        = "grapevine/closed"

	// TopicMessage receives every parsed envelope regardless of event.
	TopicMessage = "grapevine/message"
)

// Note is one local notification. Env is set when the note wraps a wire
// envelope, Err when it reports a problem (currently only parse failures).
// Lifecycle notes may carry neither.
type Note struct {
	Topic string
	Env   *wire.Envelope
	Err   error
}

// Subscription is a live feed of notes. Receive from C; Cancel when done.
// C closes after Cancel, or when the dispatcher shuts down.
type Subscription struct {
	C      <-chan Note
	cancel func()
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewSubscription wraps a note channel and a cancel function. Dispatcher
// implementations use it; applications only consume the result.
func NewSubscription(c <-chan Note, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Dispatcher is the fanout the connection publishes notes through. The
// in-process implementation in bus/ps is the default; bus/nats mirrors
// notes onto a NATS server for out-of-process consumers.
type Dispatcher interface {
	// Publish delivers n to subscribers of each topic. With no topics,
	// n.Topic is used. Publish never reports delivery failure to the
	// caller; a note nobody hears is not an error.
	Publish(n Note, topics ...string)

	// Subscribe opens a feed covering the given topics.
	Subscribe(topics ...string) (*Subscription, error)

	// Close shuts the dispatcher down and closes every subscription.
	Close() error
}
