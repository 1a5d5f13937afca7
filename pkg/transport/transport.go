// transport/transport.go
// Package transport owns the websocket to the Grapevine network. A Socket
// runs one read pump and one write pump; everything the network says comes
// out of Frames as a Frame, and everything the caller sends goes through
// Send into a buffered channel the write pump drains.
//
// A frame that is not valid JSON is surfaced as Frame.Err and the socket
// keeps reading. Only a transport-level read failure ends the stream, at
// which point Frames is closed. There is no reconnect; a dead Socket stays
// dead and the caller decides whether to dial again.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/envis10n/go-grapevine/pkg/wire"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 16
	defaultReadLimit    = 1 << 20 // 1MB
)

// ErrSocketClosed is returned by Send once the socket's pumps have stopped.
var ErrSocketClosed = errors.New("transport: socket is closed")

// Frame is one inbound message. Exactly one of Env and Err is set: Env for a
// frame that parsed, Err for one that did not.
type Frame struct {
	Env *wire.Envelope
	Err error
}

// Conn is the transport seen by the client: send envelopes, receive frames,
// close. *Socket implements it; tests substitute their own.
type Conn interface {
	Send(ctx context.Context, env *wire.Envelope) error
	TrySend(env *wire.Envelope) bool
	Frames() <-chan Frame
	Close(code websocket.StatusCode, reason string) error
}

// Options contains configuration options for a Socket.
type Options struct {
	// Logger for transport-level events. Defaults to slog.Default().
	Logger *slog.Logger

	// DialOptions are passed through to the websocket dial.
	DialOptions *websocket.DialOptions

	// WriteTimeout bounds a single write to the wire. Defaults to 10s.
	WriteTimeout time.Duration

	// SendBuffer is the capacity of the outbound queue. Defaults to 16.
	SendBuffer int

	// ReadLimit is the maximum inbound frame size in bytes. Defaults to 1MB.
	ReadLimit int64
}

// Socket is a live websocket connection with its two pumps running.
type Socket struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	frames chan Frame
	send   chan *wire.Envelope

	pumpCtx    context.Context
	pumpCancel context.CancelFunc
	pumpWg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to urlStr and starts the pumps. ctx bounds the dial only;
// the pumps live until the connection dies or Close is called.
func Dial(ctx context.Context, urlStr string, opts Options) (*Socket, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}

	conn, httpResp, err := websocket.Dial(ctx, urlStr, opts.DialOptions)
	if err != nil {
		if httpResp != nil {
			return nil, fmt.Errorf("dial to %s failed: %v (status: %s)", urlStr, err, httpResp.Status)
		}
		return nil, fmt.Errorf("dial to %s failed: %w", urlStr, err)
	}
	conn.SetReadLimit(opts.ReadLimit)

	pumpCtx, pumpCancel := context.WithCancel(context.Background())
	s := &Socket{
		conn:         conn,
		logger:       opts.Logger,
		writeTimeout: opts.WriteTimeout,
		frames:       make(chan Frame),
		send:         make(chan *wire.Envelope, opts.SendBuffer),
		pumpCtx:      pumpCtx,
		pumpCancel:   pumpCancel,
	}

	s.pumpWg.Add(2)
	go s.readPump()
	go s.writePump()

	return s, nil
}

// Send queues env for the write pump. The envelope is stamped and written by
// the socket's own goroutine; the caller must not mutate it after Send.
func (s *Socket) Send(ctx context.Context, env *wire.Envelope) error {
	select {
	case s.send <- env:
		return nil
	case <-s.pumpCtx.Done():
		return ErrSocketClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend queues env without waiting. It reports false when the outbound
// queue is full or the socket is closed, and the envelope is dropped.
func (s *Socket) TrySend(env *wire.Envelope) bool {
	select {
	case s.send <- env:
		return true
	case <-s.pumpCtx.Done():
		return false
	default:
		return false
	}
}

// Frames returns the inbound stream. It is closed when the connection ends.
func (s *Socket) Frames() <-chan Frame {
	return s.frames
}

// Close tears the connection down and waits for both pumps to stop. Safe to
// call more than once.
func (s *Socket) Close(code websocket.StatusCode, reason string) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close(code, reason)
		s.pumpCancel()
		s.pumpWg.Wait()
	})
	return s.closeErr
}

func (s *Socket) readPump() {
	defer func() {
		// Signal the write pump for this connection to stop.
		s.pumpCancel()
		close(s.frames)
		s.pumpWg.Done()
	}()

	for {
		_, data, err := s.conn.Read(s.pumpCtx)
		if err != nil {
			status := websocket.CloseStatus(err)
			select {
			case <-s.pumpCtx.Done():
				s.logger.Debug("transport: readPump stopping after shutdown", "error", err)
			default:
				if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
					s.logger.Debug("transport: read error in readPump", "error", err, "status", int(status))
				} else {
					s.logger.Debug("transport: readPump normal websocket closure", "status", int(status))
				}
			}
			return
		}

		env := &wire.Envelope{}
		if err := json.Unmarshal(data, env); err != nil {
			// The connection survives a frame we cannot parse.
			select {
			case s.frames <- Frame{Err: fmt.Errorf("malformed frame: %w", err)}:
			case <-s.pumpCtx.Done():
				return
			}
			continue
		}

		select {
		case s.frames <- Frame{Env: env}:
		case <-s.pumpCtx.Done():
			return
		}
	}
}

func (s *Socket) writePump() {
	defer s.pumpWg.Done()

	for {
		select {
		case env := <-s.send:
			env.Ts = wire.TimeNow().UnixMilli()
			writeCtx, writeCancel := context.WithTimeout(s.pumpCtx, s.writeTimeout)
			err := wsjson.Write(writeCtx, s.conn, env)
			writeCancel()
			if err != nil {
				s.logger.Debug("transport: write error in writePump", "event", env.Event, "error", err)
				// A write error usually means the connection is bad; the
				// read pump will notice and end the frame stream.
				s.pumpCancel()
				return
			}
		case <-s.pumpCtx.Done():
			return
		}
	}
}
