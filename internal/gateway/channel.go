package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/validade/internal/domain"
)

// ChannelID names the web chat in conversation keys ("web:<chatId>").
const ChannelID = "web"

var ErrNoClient = errors.New("no web client connected for chat")

func (s *Server) ID() string { return ChannelID }

// Capabilities: a browser tab is always a private chat that can upload
// photos.
func (s *Server) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
		Media:     true,
		Reply:     true,
	}
}

// OnMessage sets where chat.send requests are delivered.
func (s *Server) OnMessage(handler func(domain.InboundMessage)) {
	s.mu.Lock()
	s.onMessage = handler
	s.mu.Unlock()
}

func (s *Server) Status() domain.ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ChannelStatus{ChannelID: ChannelID, Connected: s.running, Running: s.running}
}

// Send delivers msg as a chat.reply event to every tab open on msg.To.
// It fails only when no tab received it.
func (s *Server) Send(_ context.Context, msg domain.OutboundMessage) error {
	tabs := s.clients.ByChat(msg.To)
	if len(tabs) == 0 {
		return fmt.Errorf("%w: %s", ErrNoClient, msg.To)
	}
	reply := ChatReply{Text: msg.Body, ReplyTo: msg.ReplyToID}
	var errs []error
	for _, c := range tabs {
		if err := c.SendEvent(EventChatReply, reply, s.eventSeq.Add(1)); err != nil {
			errs = append(errs, fmt.Errorf("conn %s: %w", c.ConnID, err))
		}
	}
	if len(errs) < len(tabs) {
		return nil
	}
	return errors.Join(errs...)
}
