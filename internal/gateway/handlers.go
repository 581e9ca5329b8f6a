package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/store"
	"github.com/soyeahso/validade/internal/version"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC method fills the rest.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// ReminderView is a stored reminder plus its armed fire time, if any.
type ReminderView struct {
	domain.Reminder
	FireAt *time.Time `json:"fireAt,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	if s.reminders == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "reminders not configured")
		return
	}
	views, err := s.listReminders(r, r.URL.Query().Get("chat"))
	if err != nil {
		s.log.Error().Err(err).Msg("listing reminders")
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reminders": views})
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if s.reminders == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "reminders not configured")
		return
	}
	id := chi.URLParam(r, "id")
	switch err := s.reminders.Delete(r.Context(), id); {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "reminder not found: "+id)
	case err != nil:
		s.log.Error().Err(err).Str("id", id).Msg("deleting reminder")
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"channels": s.channelStatus()})
}

func (s *Server) channelStatus() []domain.ChannelStatus {
	if s.channels == nil {
		return []domain.ChannelStatus{s.Status()}
	}
	return s.channels.Status()
}

func (s *Server) listReminders(r *http.Request, chat string) ([]ReminderView, error) {
	list, err := s.reminders.List(r.Context(), chat)
	if err != nil {
		return nil, err
	}
	return s.views(list), nil
}

func (s *Server) views(list []domain.Reminder) []ReminderView {
	out := make([]ReminderView, 0, len(list))
	for _, rem := range list {
		v := ReminderView{Reminder: rem}
		if at, ok := s.reminders.Armed(rem.ID); ok {
			v.FireAt = &at
		}
		out = append(out, v)
	}
	return out
}

func (s *Server) health() HealthResponse {
	s.mu.RLock()
	started := s.since
	s.mu.RUnlock()
	h := HealthResponse{Status: "ok", Version: version.Version, Clients: s.clients.Count()}
	if !started.IsZero() {
		h.Uptime = time.Since(started).Round(time.Second).String()
	}
	return h
}

// handleNotFound returns a JSON 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorShape{Code: code, Message: message})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message})
}

// Params unmarshals the request params into target.
func (rc *RequestContext) Params(target any) error {
	return rc.Frame.Decode(target)
}
