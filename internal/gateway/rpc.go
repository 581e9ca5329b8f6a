package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/store"
)

const rpcTimeout = 30 * time.Second

// registerRPCHandlers sets up the JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("channels.status", s.rpcChannelsStatus)
	s.Handle("chat.send", s.rpcChatSend)
	if s.reminders != nil {
		s.Handle("reminders.list", s.rpcRemindersList)
		s.Handle("reminders.delete", s.rpcRemindersDelete)
	}
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(s.health())
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	rc.Respond(map[string]any{"channels": s.channelStatus()})
}

// rpcChatSend hands the message to the conversation engine. The reply
// arrives later as a chat.reply event.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" && p.Image == "" {
		rc.RespondError("invalid_params", "message or image is required")
		return
	}

	msg := domain.InboundMessage{
		ID:        rc.Frame.ID,
		ChannelID: ChannelID,
		From:      rc.Client.ChatID,
		FromName:  rc.Client.Info.DisplayName,
		ChatID:    rc.Client.ChatID,
		ChatType:  domain.ChatTypeDM,
		Body:      p.Message,
		Timestamp: time.Now(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if p.Image != "" {
		data, err := base64.StdEncoding.DecodeString(p.Image)
		if err != nil {
			rc.RespondError("invalid_params", "image is not valid base64")
			return
		}
		msg.Media = []domain.Attachment{{
			ID:       msg.ID,
			MimeType: http.DetectContentType(data),
			Size:     int64(len(data)),
			Load:     domain.BytesMedia(data),
		}}
	}

	s.mu.RLock()
	handler := s.onMessage
	s.mu.RUnlock()
	if handler == nil {
		rc.RespondError("unavailable", "chat is not wired")
		return
	}
	handler(msg)
	rc.Respond(map[string]any{"queued": true, "id": msg.ID, "chatId": msg.ChatID})
}

type remindersListParams struct {
	All bool `json:"all,omitempty"`
}

// rpcRemindersList lists the caller's reminders, or every reminder with
// all set.
func (s *Server) rpcRemindersList(rc *RequestContext) {
	var p remindersListParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	chat := domain.ConversationKey{ChannelID: ChannelID, ChatID: rc.Client.ChatID}.String()
	if p.All {
		chat = ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	list, err := s.reminders.List(ctx, chat)
	if err != nil {
		rc.RespondError("storage_error", err.Error())
		return
	}
	rc.Respond(map[string]any{"reminders": s.views(list)})
}

type remindersDeleteParams struct {
	ID string `json:"id"`
}

func (s *Server) rpcRemindersDelete(rc *RequestContext) {
	var p remindersDeleteParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.ID == "" {
		rc.RespondError("invalid_params", "id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	switch err := s.reminders.Delete(ctx, p.ID); {
	case errors.Is(err, store.ErrNotFound):
		rc.RespondError("not_found", "reminder not found: "+p.ID)
	case err != nil:
		rc.RespondError("storage_error", err.Error())
	default:
		rc.Respond(map[string]any{"deleted": p.ID})
	}
}
