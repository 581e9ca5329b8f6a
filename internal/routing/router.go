// Package routing connects messaging channels to the conversation engine
// and carries the engine's replies back to the originating chat.
package routing

import (
	"context"
	"fmt"

	"github.com/soyeahso/validade/internal/channel"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/hooks"
	"github.com/soyeahso/validade/internal/logging"
)

// Dispatcher accepts inbound messages for asynchronous handling.
type Dispatcher interface {
	Enqueue(msg domain.InboundMessage) bool
}

// Router routes inbound messages to a Dispatcher and replies to channels.
type Router struct {
	channels *channel.Registry
	hooks    *hooks.Manager
	log      *logging.Logger
}

// NewRouter creates a message router. hooks may be nil.
func NewRouter(channels *channel.Registry, h *hooks.Manager, log *logging.Logger) *Router {
	return &Router{
		channels: channels,
		hooks:    h,
		log:      log.Sub("routing"),
	}
}

// Wire registers d as the message handler on all registered channels.
func (r *Router) Wire(d Dispatcher) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			r.log.Debug().
				Str("channel", msg.ChannelID).
				Str("from", msg.From).
				Str("chatId", msg.ChatID).
				Str("chatType", string(msg.ChatType)).
				Bool("media", msg.HasMedia()).
				Msg("routing inbound message")
			if !d.Enqueue(msg) {
				r.log.Warn().Str("channel", msg.ChannelID).Msg("message dropped")
			}
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// Reply sends body back to the chat msg came from.
func (r *Router) Reply(ctx context.Context, msg domain.InboundMessage, body string) {
	out := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        replyTarget(msg),
		Body:      body,
		ReplyToID: msg.ID,
	}
	r.hooks.EmitAsync(ctx, hooks.EventMessageSending, map[string]any{
		"channel": out.ChannelID,
		"to":      out.To,
		"body":    out.Body,
	})

	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		r.log.Error().Str("channel", msg.ChannelID).Msg("channel not found for reply")
		return
	}
	if err := ch.Send(ctx, out); err != nil {
		r.log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("to", out.To).
			Msg("failed to send reply")
		return
	}
	r.log.Debug().
		Str("channel", msg.ChannelID).
		Str("to", out.To).
		Msg("reply sent")
}

// replyTarget determines where to send the response. Group chats share
// one conversation, so the reply goes to the chat rather than the sender.
func replyTarget(msg domain.InboundMessage) string {
	if msg.ChatType == domain.ChatTypeDM && msg.ChatID == "" {
		return msg.From
	}
	return msg.ChatID
}

// SendTo sends a message to a specific channel.
func (r *Router) SendTo(ctx context.Context, channelID, target, body string) error {
	ch, ok := r.channels.Get(channelID)
	if !ok {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return ch.Send(ctx, domain.OutboundMessage{
		ChannelID: channelID,
		To:        target,
		Body:      body,
	})
}
