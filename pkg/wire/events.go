// wire/events.go
package wire

// Event names - used for routing on both sides of the socket.
const (
	EventAuthenticate = "authenticate"
	EventHeartbeat    = "heartbeat"
	EventRestart      = "restart"

	EventPlayersSignIn  = "players/sign-in"
	EventPlayersSignOut = "players/sign-out"
	EventPlayersStatus  = "players/status"
	EventGamesStatus    = "games/status"

	EventTellsSend    = "tells/send"
	EventTellsReceive = "tells/receive"

	EventChannelsSend        = "channels/send"
	EventChannelsSubscribe   = "channels/subscribe"
	EventChannelsUnsubscribe = "channels/unsubscribe"
	EventChannelsBroadcast   = "channels/broadcast"
)

const (
	// ProtocolVersion is the Grapevine protocol revision this library speaks.
	ProtocolVersion = "2.3.0"

	// StatusSuccess marks a reply that satisfied the request. Anything else
	// in the status field is a failure.
	StatusSuccess = "success"
	StatusFailure = "failure"

	// DefaultURL is the production Grapevine socket endpoint.
	DefaultURL = "wss://grapevine.haus/socket"
)

// --- Payload Structs ---
// These structs define the JSON payloads the service expects or sends for
// each event. Inbound payload fields the service may omit are tagged omitempty.

// AuthenticatePayload is sent once per connection, immediately after the
// socket opens.
type AuthenticatePayload struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Supports     []string `json:"supports"`
	Channels     []string `json:"channels,omitempty"`
	Version      string   `json:"version"`
	UserAgent    string   `json:"user_agent"`
}

// AuthenticatedPayload is what the service returns on a successful
// authenticate.
type AuthenticatedPayload struct {
	Unicode string `json:"unicode,omitempty"`
	Version string `json:"version,omitempty"`
}

// HeartbeatPayload answers a service heartbeat with the players currently
// signed in to this game.
type HeartbeatPayload struct {
	Players []string `json:"players"`
}

// PlayerPayload names a single player for players/sign-in and players/sign-out.
type PlayerPayload struct {
	Name string `json:"name"`
}

// PlayerMovementPayload is the service's broadcast form of sign-in/sign-out
// events originating from other games.
type PlayerMovementPayload struct {
	Game string `json:"game"`
	Name string `json:"name"`
}

// GameStatusPayload narrows a games/status request to one game.
type GameStatusPayload struct {
	Game string `json:"game"`
}

// GameStatusResponse is one game's entry in a games/status answer.
type GameStatusResponse struct {
	Game              string   `json:"game"`
	DisplayName       string   `json:"display_name,omitempty"`
	Description       string   `json:"description,omitempty"`
	HomepageURL       string   `json:"homepage_url,omitempty"`
	UserAgent         string   `json:"user_agent,omitempty"`
	UserAgentRepoURL  string   `json:"user_agent_repo_url,omitempty"`
	Supports          []string `json:"supports,omitempty"`
	PlayerOnlineCount int      `json:"player_online_count,omitempty"`
}

// PlayersStatusResponse is one game's entry in a players/status answer.
type PlayersStatusResponse struct {
	Game    string   `json:"game"`
	Players []string `json:"players"`
}

// TellSendPayload carries a private message to a player somewhere on the
// network. SentAt is RFC 3339 UTC.
type TellSendPayload struct {
	FromName string `json:"from_name"`
	ToGame   string `json:"to_game"`
	ToName   string `json:"to_name"`
	SentAt   string `json:"sent_at"`
	Message  string `json:"message"`
}

// TellReceivePayload is an incoming private message for a local player.
type TellReceivePayload struct {
	FromGame string `json:"from_game"`
	FromName string `json:"from_name"`
	ToName   string `json:"to_name"`
	SentAt   string `json:"sent_at"`
	Message  string `json:"message"`
}

// ChannelSendPayload broadcasts a message from a local player to a channel.
type ChannelSendPayload struct {
	Channel string `json:"channel"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ChannelPayload names a channel for channels/subscribe and channels/unsubscribe.
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// ChannelBroadcastPayload is a message arriving on a subscribed channel.
type ChannelBroadcastPayload struct {
	Channel string `json:"channel"`
	Game    string `json:"game"`
	Name    string `json:"name"`
	Message string `json:"message"`
}
