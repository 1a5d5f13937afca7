// client/options.go
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/envis10n/go-grapevine/pkg/bus"
	"github.com/envis10n/go-grapevine/pkg/wire"
)

// Option configures the Client.
type Option func(*Client)

// WithURL points the client at a different socket endpoint. The default is
// the production Grapevine network.
func WithURL(urlStr string) Option {
	return func(c *Client) {
		if urlStr != "" {
			c.config.urlStr = urlStr
		}
	}
}

// WithGame sets the default game for tells whose target does not name one.
func WithGame(game string) Option {
	return func(c *Client) {
		c.config.game = game
	}
}

// WithSupports replaces the feature flags sent during authentication. The
// default is channels, players, tells and games.
func WithSupports(supports ...string) Option {
	return func(c *Client) {
		if len(supports) > 0 {
			c.config.supports = supports
		}
	}
}

// WithChannels names the channels to join during authentication.
func WithChannels(channels ...string) Option {
	return func(c *Client) {
		c.config.channels = channels
	}
}

// WithUserAgent overrides the user agent reported to the network. The
// default identifies this library and is fixed when the client is built.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.config.userAgent = userAgent
		}
	}
}

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.config.logger = logger
		}
	}
}

// WithDialOptions sets custom websocket.DialOptions.
func WithDialOptions(opts *websocket.DialOptions) Option {
	return func(c *Client) {
		c.config.dialOptions = opts
	}
}

// WithRequestTimeout puts a deadline on operations that wait for the
// service's acknowledgement, the handshake included. Zero, the default,
// waits for as long as the connection lasts.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.config.requestTimeout = timeout
		}
	}
}

// WithSendBuffer sets the outbound queue capacity.
func WithSendBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.config.sendBuffer = n
		}
	}
}

// WithDispatcher replaces the in-process note dispatcher, for example with
// the NATS-backed one. The client never closes a dispatcher it was given.
func WithDispatcher(d bus.Dispatcher) Option {
	return func(c *Client) {
		if d != nil {
			c.config.dispatcher = d
		}
	}
}

// WithRefGenerator replaces the reference ID generator. Tests use this to
// make refs predictable.
func WithRefGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.config.newRef = fn
		}
	}
}

// Options contains configuration values for ConnectWithOptions.
type Options struct {
	Logger         *slog.Logger
	URL            string
	Game           string
	Supports       []string
	Channels       []string
	UserAgent      string
	DialOptions    *websocket.DialOptions
	RequestTimeout time.Duration
	SendBuffer     int
	Dispatcher     bus.Dispatcher
}

// DefaultOptions returns an Options struct populated with library defaults.
func DefaultOptions() Options {
	return Options{
		Logger:     slog.Default(),
		URL:        wire.DefaultURL,
		Supports:   []string{"channels", "players", "tells", "games"},
		UserAgent:  libraryName + " " + libraryVersion,
		SendBuffer: defaultSendBuffer,
	}
}

// ConnectWithOptions establishes a connection using an Options struct.
// Zero values fall back to the same defaults Connect uses.
func ConnectWithOptions(ctx context.Context, clientID, clientSecret string, opts Options) (*Client, error) {
	cli := newClient(clientID, clientSecret)

	if opts.Logger != nil {
		cli.config.logger = opts.Logger
	}
	if opts.URL != "" {
		cli.config.urlStr = opts.URL
	}
	cli.config.game = opts.Game
	if len(opts.Supports) > 0 {
		cli.config.supports = opts.Supports
	}
	if len(opts.Channels) > 0 {
		cli.config.channels = opts.Channels
	}
	if opts.UserAgent != "" {
		cli.config.userAgent = opts.UserAgent
	}
	if opts.DialOptions != nil {
		cli.config.dialOptions = opts.DialOptions
	}
	if opts.RequestTimeout > 0 {
		cli.config.requestTimeout = opts.RequestTimeout
	}
	if opts.SendBuffer > 0 {
		cli.config.sendBuffer = opts.SendBuffer
	}
	if opts.Dispatcher != nil {
		cli.config.dispatcher = opts.Dispatcher
	}

	return connect(ctx, cli)
}
