package domain

import (
	"context"
	"strings"
)

// ChannelCapabilities describes what a channel implementation supports.
type ChannelCapabilities struct {
	ChatTypes []ChatType `json:"chatTypes"`
	Media     bool       `json:"media,omitempty"`
	Reply     bool       `json:"reply,omitempty"`
}

// ChannelStatus reports the runtime state of a channel.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
}

// Channel is the interface that all messaging channel implementations must satisfy.
type Channel interface {
	// ID returns the channel identifier (e.g., "irc", "web").
	ID() string

	// Capabilities returns what this channel supports.
	Capabilities() ChannelCapabilities

	// Start connects the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully disconnects the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message through this channel.
	Send(ctx context.Context, msg OutboundMessage) error

	// OnMessage registers a handler for inbound messages.
	OnMessage(handler func(msg InboundMessage))
}

// ConversationKey identifies one conversation: a chat on a channel. Its
// string form is the conversation id stored on sessions and reminders.
type ConversationKey struct {
	ChannelID string `json:"channelId"`
	ChatID    string `json:"chatId"`
}

// String returns "channel:chat".
func (k ConversationKey) String() string {
	return k.ChannelID + ":" + k.ChatID
}

// ParseConversationKey splits a conversation id on its first colon. Chat
// ids may themselves contain colons.
func ParseConversationKey(s string) (ConversationKey, bool) {
	channelID, chatID, ok := strings.Cut(s, ":")
	if !ok || channelID == "" || chatID == "" {
		return ConversationKey{}, false
	}
	return ConversationKey{ChannelID: channelID, ChatID: chatID}, true
}
