// client/tells.go
package client

import (
	"context"
	"strings"

	"github.com/envis10n/go-grapevine/pkg/wire"
)

// SendTell delivers a private message to a player somewhere on the network
// and waits for the service's acknowledgement. target is "player" for a
// player on the default game, or "player@game" to name the game explicitly.
// A rejection comes back as a *wire.RemoteError carrying the service's
// reason word for word.
func (c *Client) SendTell(ctx context.Context, fromName, target, message string) error {
	toName, toGame := c.splitTarget(target)
	if toGame == "" {
		return ErrNoGame
	}

	w := c.corr.Wait(wire.EventTellsSend)
	env, err := wire.NewEnvelope(wire.EventTellsSend, c.config.newRef(), wire.TellSendPayload{
		FromName: fromName,
		ToGame:   toGame,
		ToName:   toName,
		SentAt:   wire.FormatSentAt(wire.TimeNow()),
		Message:  message,
	})
	if err != nil {
		c.corr.Forget(w)
		return err
	}
	if err := c.sock.Send(ctx, env); err != nil {
		c.corr.Forget(w)
		return err
	}
	c.config.logger.Debug("client: tell sent", "to_game", toGame, "to_name", toName)

	out, err := c.await(ctx, w)
	if err != nil {
		return err
	}
	return out.Err
}

// splitTarget separates "player@game" into its parts. A target without a
// game, or with an empty one, falls back to the configured default game.
func (c *Client) splitTarget(target string) (name, game string) {
	parts := strings.SplitN(target, "@", 2)
	name = parts[0]
	if len(parts) == 2 && parts[1] != "" {
		return name, parts[1]
	}
	return name, c.config.game
}
