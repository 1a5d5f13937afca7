// correlate/correlate.go

// Package correlate matches replies arriving on the Grapevine socket to the
// requests that are waiting on them.
//
// The service does not echo request refs on every reply, so correlation is
// by event name alone: each event name owns a FIFO queue of waiters, and a
// status-bearing reply consumes the waiter at the head of its queue. A reply
// with no status at all is a server push; every waiter queued for that event
// observes it and none are consumed.
//
// Waiters carry no deadline of their own. A reply that never arrives leaves
// its waiter queued until the correlator is discarded; callers that abandon
// a wait early should hand the waiter back via Forget.
package correlate

import (
	"log/slog"
	"sync"

	"github.com/envis10n/go-grapevine/pkg/wire"
)

// Outcome is the result a Waiter eventually produces: the envelope that
// satisfied it, or the service failure that rejected it.
type Outcome struct {
	Env *wire.Envelope
	Err error
}

// Waiter is a single-shot future for one reply. It produces at most one
// Outcome on Done, no matter how many envelopes target it.
type Waiter struct {
	event string
	ch    chan Outcome
	done  bool // guarded by the owning Correlator's mu
}

// Done returns the channel the Outcome arrives on.
func (w *Waiter) Done() <-chan Outcome {
	return w.ch
}

// Event returns the event name the waiter is queued under.
func (w *Waiter) Event() string {
	return w.event
}

// Correlator routes inbound envelopes to queued waiters. One mutex guards
// all queues so each delivery is atomic with respect to every Wait and
// Forget, whichever goroutine it comes from.
type Correlator struct {
	mu     sync.Mutex
	queues map[string][]*Waiter
	logger *slog.Logger
}

// New creates an empty Correlator.
func New(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		queues: make(map[string][]*Waiter),
		logger: logger,
	}
}

// Wait enqueues a waiter for the next reply carrying the given event name.
// Waiters for the same event are served strictly in Wait order.
func (c *Correlator) Wait(event string) *Waiter {
	w := &Waiter{
		event: event,
		ch:    make(chan Outcome, 1),
	}
	c.mu.Lock()
	c.queues[event] = append(c.queues[event], w)
	c.mu.Unlock()
	return w
}

// Deliver routes one inbound envelope and reports whether anyone was
// waiting for it. An envelope for an event with no queue is dropped.
//
// A successful reply resolves the head of the queue and consumes it; a
// failure reply rejects the head and consumes it. An envelope with no
// status resolves every queued waiter and consumes none of them: only a
// status-bearing reply moves the queue.
func (c *Correlator) Deliver(env *wire.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.queues[env.Event]
	if len(queue) == 0 {
		return false
	}

	if env.Broadcast() {
		for _, w := range queue {
			c.resolve(w, env)
		}
		return true
	}

	head := queue[0]
	if len(queue) == 1 {
		delete(c.queues, env.Event)
	} else {
		c.queues[env.Event] = queue[1:]
	}

	if env.Status == wire.StatusSuccess {
		c.resolve(head, env)
	} else {
		c.reject(head, env.RemoteError())
	}
	return true
}

// Forget removes an abandoned waiter from its queue so it can no longer
// consume a reply. Reports whether the waiter was still queued.
func (c *Correlator) Forget(w *Waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.queues[w.event]
	for i, queued := range queue {
		if queued == w {
			queue = append(queue[:i], queue[i+1:]...)
			if len(queue) == 0 {
				delete(c.queues, w.event)
			} else {
				c.queues[w.event] = queue
			}
			return true
		}
	}
	return false
}

// Pending returns how many waiters are queued for the given event name.
func (c *Correlator) Pending(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[event])
}

// resolve and reject require c.mu held. The done flag makes each waiter
// single-shot: a waiter left queued by a push can be targeted again later,
// and only the first outcome lands. The channel is buffered so neither
// ever blocks delivery.
func (c *Correlator) resolve(w *Waiter, env *wire.Envelope) {
	if w.done {
		return
	}
	w.done = true
	w.ch <- Outcome{Env: env}
}

func (c *Correlator) reject(w *Waiter, err error) {
	if w.done {
		c.logger.Debug("correlate: rejection for already-settled waiter", "event", w.event)
		return
	}
	w.done = true
	w.ch <- Outcome{Err: err}
}
