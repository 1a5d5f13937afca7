// client/status.go
package client

import (
	"context"

	"github.com/envis10n/go-grapevine/pkg/wire"
)

// RequestStatus asks the network about games and their players. With a game
// it sends games/status scoped to that game; with "" it sends players/status
// covering every game. The request is fire-and-forget: answers arrive on the
// note feed under wire.EventGamesStatus or wire.EventPlayersStatus, and
// nothing here waits for them.
func (c *Client) RequestStatus(ctx context.Context, game string) error {
	var (
		env *wire.Envelope
		err error
	)
	if game != "" {
		env, err = wire.NewEnvelope(wire.EventGamesStatus, c.config.newRef(), wire.GameStatusPayload{Game: game})
	} else {
		env, err = wire.NewEnvelope(wire.EventPlayersStatus, c.config.newRef(), nil)
	}
	if err != nil {
		return err
	}
	return c.sock.Send(ctx, env)
}
