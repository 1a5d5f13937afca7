// grapevine.go
// Package grapevine is a client library for the Grapevine MUD chat network.
// It re-exports the pieces most programs need so that a single import is
// enough: connect, await the handshake, sign players in and out, send tells,
// and follow the rest of the network through the note feed.
package grapevine

import (
	"context"

	"github.com/envis10n/go-grapevine/pkg/bus"
	"github.com/envis10n/go-grapevine/pkg/client"
	"github.com/envis10n/go-grapevine/pkg/wire"
)

// Re-export core types
type (
	Client       = client.Client
	Option       = client.Option
	Options      = client.Options
	State        = client.State
	Envelope     = wire.Envelope
	RemoteError  = wire.RemoteError
	Note         = bus.Note
	Subscription = bus.Subscription
	Dispatcher   = bus.Dispatcher
)

// Re-export error values
var (
	ErrNoCredentials = client.ErrNoCredentials
	ErrClosed        = client.ErrClosed
	ErrWaitTimeout   = client.ErrWaitTimeout
	ErrNoGame        = client.ErrNoGame
)

// Re-export session states
const (
	StateDisconnected   = client.StateDisconnected
	StateConnected      = client.StateConnected
	StateAuthenticating = client.StateAuthenticating
	StateAuthenticated  = client.StateAuthenticated
	StateClosed         = client.StateClosed
)

// Re-export note topics (application might want to listen)
const (
	TopicConnected     = bus.TopicConnected
	TopicAuthenticated = bus.TopicAuthenticated
	TopicHeartbeat     = bus.TopicHeartbeat
	TopicParseError    = bus.TopicParseError
	TopicClosed        = bus.TopicClosed
	TopicMessage       = bus.TopicMessage
)

// Re-export wire event names; notes are republished under these, so they
// double as Notify topics.
const (
	EventRestart             = wire.EventRestart
	EventPlayersSignIn       = wire.EventPlayersSignIn
	EventPlayersSignOut      = wire.EventPlayersSignOut
	EventPlayersStatus       = wire.EventPlayersStatus
	EventGamesStatus         = wire.EventGamesStatus
	EventTellsReceive        = wire.EventTellsReceive
	EventChannelsBroadcast   = wire.EventChannelsBroadcast
	EventChannelsSend        = wire.EventChannelsSend
	EventChannelsSubscribe   = wire.EventChannelsSubscribe
	EventChannelsUnsubscribe = wire.EventChannelsUnsubscribe
)

// Re-export option constructors
var (
	WithURL            = client.WithURL
	WithGame           = client.WithGame
	WithSupports       = client.WithSupports
	WithChannels       = client.WithChannels
	WithUserAgent      = client.WithUserAgent
	WithLogger         = client.WithLogger
	WithDialOptions    = client.WithDialOptions
	WithRequestTimeout = client.WithRequestTimeout
	WithSendBuffer     = client.WithSendBuffer
	WithDispatcher     = client.WithDispatcher
	WithRefGenerator   = client.WithRefGenerator
)

// DefaultURL is the production Grapevine socket endpoint.
const DefaultURL = wire.DefaultURL

// Connect dials the Grapevine network and starts the handshake.
func Connect(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	return client.Connect(ctx, clientID, clientSecret, opts...)
}

// ConnectWithOptions establishes a connection using an Options struct.
func ConnectWithOptions(ctx context.Context, clientID, clientSecret string, opts Options) (*Client, error) {
	return client.ConnectWithOptions(ctx, clientID, clientSecret, opts)
}

// DefaultOptions returns an Options struct populated with library defaults.
func DefaultOptions() Options {
	return client.DefaultOptions()
}

// NewRef mints a correlation ref the way the client does internally.
func NewRef() string {
	return wire.NewRef()
}
