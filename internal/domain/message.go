package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNoMedia is returned when an attachment has no loadable content.
var ErrNoMedia = errors.New("attachment has no content")

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// MediaFunc fetches attachment bytes on demand. Channels download lazily
// so a message whose media is never used costs nothing.
type MediaFunc func(ctx context.Context) ([]byte, error)

// Attachment represents a file or media attachment on a message.
type Attachment struct {
	ID       string    `json:"id,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Load     MediaFunc `json:"-"`
}

// Bytes loads the attachment content.
func (a Attachment) Bytes(ctx context.Context) ([]byte, error) {
	if a.Load == nil {
		return nil, ErrNoMedia
	}
	return a.Load(ctx)
}

// BytesMedia wraps already-available content as a MediaFunc.
func BytesMedia(data []byte) MediaFunc {
	return func(context.Context) ([]byte, error) { return data, nil }
}

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channelId"`
	From      string       `json:"from"`
	FromName  string       `json:"fromName,omitempty"`
	ChatID    string       `json:"chatId"`
	ChatType  ChatType     `json:"chatType"`
	Body      string       `json:"body"`
	Timestamp time.Time    `json:"timestamp"`
	Media     []Attachment `json:"media,omitempty"`
}

// Key returns the conversation this message belongs to.
func (m InboundMessage) Key() ConversationKey {
	return ConversationKey{ChannelID: m.ChannelID, ChatID: m.ChatID}
}

// Image returns the first loadable attachment, or nil.
func (m InboundMessage) Image() *Attachment {
	for i := range m.Media {
		if m.Media[i].Load != nil {
			return &m.Media[i]
		}
	}
	return nil
}

// HasMedia reports whether the message carries loadable media.
func (m InboundMessage) HasMedia() bool {
	return m.Image() != nil
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	Body      string `json:"body"`
	ReplyToID string `json:"replyToId,omitempty"`
}
