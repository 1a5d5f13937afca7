// Package nats mirrors connection notes onto a NATS server, so processes
// outside the game can follow network traffic, and implements the same
// bus.Dispatcher interface as the in-process fanout.
package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/envis10n/go-grapevine/pkg/bus"
	"github.com/envis10n/go-grapevine/pkg/wire"
)

const msgBuffer = 64

// Options contains configuration options for the NATS bus.
type Options struct {
	// URL is the NATS server URL. Defaults to nats.DefaultURL.
	URL string

	// SubjectPrefix is prepended to every mapped subject. Empty means
	// topics map verbatim ("tells/send" publishes on "tells.send").
	SubjectPrefix string

	// ConnectionOptions are additional options for the NATS connection.
	ConnectionOptions []nats.Option
}

// Bus is a bus.Dispatcher backed by a NATS connection. Note topics map to
// subjects with "/" replaced by ".".
type Bus struct {
	conn   *nats.Conn
	logger *slog.Logger
	prefix string

	mu      sync.Mutex
	cancels []func()
	closed  bool
}

// noteWire is the JSON form a Note travels in. Errors travel as text.
type noteWire struct {
	Topic string         `json:"topic"`
	Env   *wire.Envelope `json:"env,omitempty"`
	Error string         `json:"error,omitempty"`
}

// New connects to NATS and returns the Bus.
func New(logger *slog.Logger, opts Options) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	conn, err := nats.Connect(opts.URL, opts.ConnectionOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bus{
		conn:   conn,
		logger: logger,
		prefix: opts.SubjectPrefix,
	}, nil
}

func (b *Bus) subjectFor(topic string) string {
	subject := strings.ReplaceAll(topic, "/", ".")
	if b.prefix != "" {
		return b.prefix + "." + subject
	}
	return subject
}

// Publish mirrors n onto the subject for each topic, defaulting to n.Topic.
// Delivery problems are logged, not returned; the local connection must not
// stall because the mirror is unhappy.
func (b *Bus) Publish(n bus.Note, topics ...string) {
	if len(topics) == 0 {
		topics = []string{n.Topic}
	}

	w := noteWire{Topic: n.Topic, Env: n.Env}
	if n.Err != nil {
		w.Error = n.Err.Error()
	}
	data, err := json.Marshal(w)
	if err != nil {
		b.logger.Error("nats bus: failed to marshal note", "topic", n.Topic, "error", err)
		return
	}

	for _, topic := range topics {
		if err := b.conn.Publish(b.subjectFor(topic), data); err != nil {
			b.logger.Error("nats bus: publish failed", "subject", b.subjectFor(topic), "error", err)
		}
	}
}

// Subscribe opens a feed covering the given topics.
func (b *Bus) Subscribe(topics ...string) (*bus.Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("bus is closed")
	}
	b.mu.Unlock()

	msgCh := make(chan *nats.Msg, msgBuffer)
	subs := make([]*nats.Subscription, 0, len(topics))
	for _, topic := range topics {
		sub, err := b.conn.ChanSubscribe(b.subjectFor(topic), msgCh)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("failed to subscribe to %s: %w", b.subjectFor(topic), err)
		}
		subs = append(subs, sub)
	}

	out := make(chan bus.Note, msgBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			close(done)
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case msg := <-msgCh:
				var w noteWire
				if err := json.Unmarshal(msg.Data, &w); err != nil {
					b.logger.Error("nats bus: bad note on subject", "subject", msg.Subject, "error", err)
					continue
				}
				n := bus.Note{Topic: w.Topic, Env: w.Env}
				if w.Error != "" {
					n.Err = errors.New(w.Error)
				}
				select {
				case out <- n:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	return bus.NewSubscription(out, cancel), nil
}

// Close cancels every subscription and closes the NATS connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	b.conn.Close()
	return nil
}
