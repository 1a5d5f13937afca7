// client/channels.go
package client

import (
	"context"

	"github.com/envis10n/go-grapevine/pkg/wire"
)

// SendChannel broadcasts a message from a local player onto a channel. The
// send is fire-and-forget; messages from others on the channel arrive on the
// note feed under wire.EventChannelsBroadcast.
func (c *Client) SendChannel(ctx context.Context, channel, name, message string) error {
	env, err := wire.NewEnvelope(wire.EventChannelsSend, c.config.newRef(), wire.ChannelSendPayload{
		Channel: channel,
		Name:    name,
		Message: message,
	})
	if err != nil {
		return err
	}
	return c.sock.Send(ctx, env)
}

// SubscribeChannel joins a channel and waits for the acknowledgement. A
// rejection, for example for a channel name the network does not allow,
// comes back as a *wire.RemoteError.
func (c *Client) SubscribeChannel(ctx context.Context, channel string) error {
	return c.channelOp(ctx, wire.EventChannelsSubscribe, channel)
}

// UnsubscribeChannel leaves a channel and waits for the acknowledgement.
func (c *Client) UnsubscribeChannel(ctx context.Context, channel string) error {
	return c.channelOp(ctx, wire.EventChannelsUnsubscribe, channel)
}

func (c *Client) channelOp(ctx context.Context, event, channel string) error {
	w := c.corr.Wait(event)
	env, err := wire.NewEnvelope(event, c.config.newRef(), wire.ChannelPayload{Channel: channel})
	if err != nil {
		c.corr.Forget(w)
		return err
	}
	if err := c.sock.Send(ctx, env); err != nil {
		c.corr.Forget(w)
		return err
	}

	out, err := c.await(ctx, w)
	if err != nil {
		return err
	}
	return out.Err
}
