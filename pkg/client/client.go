// client/client.go
// Package client is a Grapevine network client. It holds one websocket
// session: it authenticates, answers heartbeats with the local player
// roster, and exposes the network's operations as methods.
//
// The moving parts are deliberately separate. The transport owns the socket,
// the correlator matches replies to callers by event name, the dispatcher
// fans notes out to anyone listening, and the session records how far the
// connection got. The Client composes them and runs the one delivery
// goroutine that feeds them all.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/envis10n/go-grapevine/pkg/bus"
	"github.com/envis10n/go-grapevine/pkg/bus/ps"
	"github.com/envis10n/go-grapevine/pkg/correlate"
	"github.com/envis10n/go-grapevine/pkg/transport"
	"github.com/envis10n/go-grapevine/pkg/wire"
)

const (
	defaultSendBuffer  = 16
	defaultBusCapacity = 32

	libraryName    = "go-grapevine"
	libraryVersion = "1.2.0"
)

var (
	// ErrNoCredentials is returned by Connect when client_id or
	// client_secret is empty.
	ErrNoCredentials = errors.New("client: client_id and client_secret are required")

	// ErrClosed is returned by operations once the client has shut down.
	ErrClosed = errors.New("client: client is closed")

	// ErrWaitTimeout is returned by acknowledged operations when the
	// request timeout elapses before the service answers.
	ErrWaitTimeout = errors.New("client: timed out waiting for a reply")

	// ErrNoGame is returned by SendTell when the target names no game and
	// no default game was configured.
	ErrNoGame = errors.New("client: target names no game and no default game is set")
)

type clientConfig struct {
	logger         *slog.Logger
	urlStr         string
	game           string
	supports       []string
	channels       []string
	userAgent      string
	dialOptions    *websocket.DialOptions
	requestTimeout time.Duration // 0 means wait as long as the connection lasts
	sendBuffer     int
	busCapacity    int
	newRef         func() string
	dispatcher     bus.Dispatcher
}

// Client is one authenticated session against the Grapevine network.
type Client struct {
	config clientConfig

	clientID     string
	clientSecret string

	sock    transport.Conn
	corr    *correlate.Correlator
	bus     bus.Dispatcher
	ownBus  bool
	sess    *session
	players *roster

	// Overall client lifetime context
	clientCtx    context.Context
	clientCancel context.CancelFunc

	deliveryWg sync.WaitGroup

	readyOnce sync.Once
	readyCh   chan struct{}
	readyErr  error

	closeOnce sync.Once
}

// Connect dials the Grapevine network and starts the authentication
// handshake. Credentials are checked before anything touches the network.
// Connect returns once the socket is up; the handshake finishes in the
// background, and AwaitReady blocks until the service has answered it.
func Connect(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	cli := newClient(clientID, clientSecret)
	for _, opt := range opts {
		opt(cli)
	}
	return connect(ctx, cli)
}

func newClient(clientID, clientSecret string) *Client {
	clientCtx, clientCancel := context.WithCancel(context.Background())
	return &Client{
		config: clientConfig{
			logger:      slog.Default(),
			urlStr:      wire.DefaultURL,
			supports:    []string{"channels", "players", "tells", "games"},
			userAgent:   libraryName + " " + libraryVersion,
			sendBuffer:  defaultSendBuffer,
			busCapacity: defaultBusCapacity,
			newRef:      wire.NewRef,
		},
		clientID:     clientID,
		clientSecret: clientSecret,
		sess:         &session{},
		players:      &roster{},
		clientCtx:    clientCtx,
		clientCancel: clientCancel,
		readyCh:      make(chan struct{}),
	}
}

// connect finishes construction for both Connect and ConnectWithOptions.
func connect(ctx context.Context, cli *Client) (*Client, error) {
	if cli.clientID == "" || cli.clientSecret == "" {
		cli.clientCancel()
		return nil, ErrNoCredentials
	}

	if cli.config.dispatcher != nil {
		cli.bus = cli.config.dispatcher
	} else {
		cli.bus = ps.New(cli.config.logger, cli.config.busCapacity)
		cli.ownBus = true
	}
	cli.corr = correlate.New(cli.config.logger)

	sock, err := transport.Dial(ctx, cli.config.urlStr, transport.Options{
		Logger:      cli.config.logger,
		DialOptions: cli.config.dialOptions,
		SendBuffer:  cli.config.sendBuffer,
	})
	if err != nil {
		cli.clientCancel()
		if cli.ownBus {
			cli.bus.Close()
		}
		return nil, err
	}
	cli.sock = sock

	if err := cli.sess.advance(StateConnected); err != nil {
		// A fresh session can always take its first step.
		sock.Close(websocket.StatusInternalError, "session in impossible state")
		cli.clientCancel()
		if cli.ownBus {
			cli.bus.Close()
		}
		return nil, err
	}
	cli.config.logger.Debug("client: connected", "url", cli.config.urlStr)
	cli.bus.Publish(bus.Note{Topic: bus.TopicConnected})

	cli.deliveryWg.Add(1)
	go cli.deliveryLoop()
	go cli.runHandshake()

	return cli, nil
}

// runHandshake sends the credentials and waits for the service's verdict.
// On success the session advances to Authenticated. On rejection it parks in
// Authenticating for the rest of its life: no retry, no disconnect, and the
// rejection is observable only through AwaitReady and the note feed.
func (c *Client) runHandshake() {
	w := c.corr.Wait(wire.EventAuthenticate)

	env, err := wire.NewEnvelope(wire.EventAuthenticate, "", wire.AuthenticatePayload{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Supports:     c.config.supports,
		Channels:     c.config.channels,
		Version:      wire.ProtocolVersion,
		UserAgent:    c.config.userAgent,
	})
	if err != nil {
		c.corr.Forget(w)
		c.finishHandshake(err)
		return
	}
	if err := c.sock.Send(c.clientCtx, env); err != nil {
		c.corr.Forget(w)
		c.finishHandshake(err)
		return
	}
	if err := c.sess.advance(StateAuthenticating); err != nil {
		// Closed while the credentials were in flight.
		c.corr.Forget(w)
		c.finishHandshake(ErrClosed)
		return
	}
	c.config.logger.Debug("client: authenticate sent", "client_id", c.clientID)

	out, err := c.await(c.clientCtx, w)
	if err != nil {
		c.finishHandshake(err)
		return
	}
	if out.Err != nil {
		c.config.logger.Debug("client: authentication rejected", "error", out.Err)
		c.finishHandshake(out.Err)
		return
	}

	if err := c.sess.advance(StateAuthenticated); err != nil {
		c.finishHandshake(ErrClosed)
		return
	}
	var p wire.AuthenticatedPayload
	if err := out.Env.DecodePayload(&p); err == nil && p.Version != "" {
		c.config.logger.Debug("client: authenticated", "service_version", p.Version)
	} else {
		c.config.logger.Debug("client: authenticated")
	}
	c.bus.Publish(bus.Note{Topic: bus.TopicAuthenticated, Env: out.Env})
	c.finishHandshake(nil)
}

func (c *Client) finishHandshake(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		close(c.readyCh)
	})
}

// AwaitReady blocks until the handshake settles. nil means the session is
// Authenticated; otherwise it returns the service's rejection or whatever
// ended the session first.
func (c *Client) AwaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliveryLoop is the single reader of the frame stream. Every decoded
// envelope first gets a chance to settle a waiter, then heartbeats are
// answered, then the envelope goes out on the note feed. When the stream
// ends the session is over for good.
func (c *Client) deliveryLoop() {
	defer c.deliveryWg.Done()

	for frame := range c.sock.Frames() {
		if frame.Err != nil {
			c.config.logger.Debug("client: undecodable frame", "error", frame.Err)
			c.bus.Publish(bus.Note{Topic: bus.TopicParseError, Err: frame.Err})
			continue
		}
		env := frame.Env
		c.corr.Deliver(env)
		if env.Event == wire.EventHeartbeat && c.sess.is(StateAuthenticated) {
			c.respondHeartbeat()
		}
		c.bus.Publish(bus.Note{Topic: env.Event, Env: env}, env.Event, bus.TopicMessage)
	}

	c.sess.advance(StateClosed)
	c.clientCancel()
	c.config.logger.Debug("client: connection ended")
	c.bus.Publish(bus.Note{Topic: bus.TopicClosed})
	if c.ownBus {
		c.bus.Close()
	}
}

// respondHeartbeat answers the service with who is signed in right now.
// Heartbeats arriving before the session is Authenticated are not answered.
func (c *Client) respondHeartbeat() {
	env, err := wire.NewEnvelope(wire.EventHeartbeat, "", wire.HeartbeatPayload{Players: c.players.snapshot()})
	if err != nil {
		return
	}
	if !c.sock.TrySend(env) {
		c.config.logger.Debug("client: heartbeat reply dropped, send queue full")
		return
	}
	c.bus.Publish(bus.Note{Topic: bus.TopicHeartbeat, Env: env})
}

// await blocks until w settles, the caller's context ends, the client shuts
// down, or the configured request timeout elapses. With no request timeout
// configured it waits for as long as the connection lasts.
func (c *Client) await(ctx context.Context, w *correlate.Waiter) (correlate.Outcome, error) {
	var timeout <-chan time.Time
	if c.config.requestTimeout > 0 {
		t := time.NewTimer(c.config.requestTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case out := <-w.Done():
		return out, nil
	case <-timeout:
		c.corr.Forget(w)
		return correlate.Outcome{}, ErrWaitTimeout
	case <-ctx.Done():
		c.corr.Forget(w)
		return correlate.Outcome{}, ctx.Err()
	case <-c.clientCtx.Done():
		c.corr.Forget(w)
		return correlate.Outcome{}, ErrClosed
	}
}

// AddPlayer records name as signed in to this game. With announce set, a
// roster change is also announced to the network as players/sign-in. It never
// waits for the service; the announcement is fire-and-forget.
func (c *Client) AddPlayer(name string, announce bool) bool {
	if !c.players.add(name) {
		return false
	}
	if announce {
		c.announce(wire.EventPlayersSignIn, name)
	}
	return true
}

// RemovePlayer records name as signed out, announcing players/sign-out when
// asked. Removing an unknown name changes nothing and sends nothing.
func (c *Client) RemovePlayer(name string, announce bool) bool {
	if !c.players.remove(name) {
		return false
	}
	if announce {
		c.announce(wire.EventPlayersSignOut, name)
	}
	return true
}

// Players returns who is signed in, in arrival order.
func (c *Client) Players() []string {
	return c.players.snapshot()
}

// announce sends a sign-in or sign-out frame. These carry no ref and get no
// reply, so a full send queue just drops them.
func (c *Client) announce(event, name string) {
	env, err := wire.NewEnvelope(event, "", wire.PlayerPayload{Name: name})
	if err != nil {
		return
	}
	if !c.sock.TrySend(env) {
		c.config.logger.Debug("client: announcement dropped, send queue full", "event", event, "player", name)
	}
}

// State reports how far the session has come.
func (c *Client) State() State {
	return c.sess.current()
}

// Notify opens a feed of connection notes. With no topics it covers the
// whole session: every lifecycle note and every decoded frame. With topics
// it narrows to those; event names from the wire package are valid topics.
func (c *Client) Notify(topics ...string) (*bus.Subscription, error) {
	if len(topics) == 0 {
		topics = []string{
			bus.TopicConnected,
			bus.TopicAuthenticated,
			bus.TopicHeartbeat,
			bus.TopicParseError,
			bus.TopicClosed,
			bus.TopicMessage,
		}
	}
	return c.bus.Subscribe(topics...)
}

// Close shuts the session down and waits for delivery to stop. Safe to call
// more than once; later calls return nil.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.config.logger.Debug("client: closing")
		c.sess.advance(StateClosed)
		c.clientCancel()
		err = c.sock.Close(websocket.StatusNormalClosure, "client closing")
	})
	c.deliveryWg.Wait()
	return err
}
