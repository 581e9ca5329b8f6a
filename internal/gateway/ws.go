package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/validade/internal/version"
)

const (
	maxPayload       = 8 << 20 // a phone photo plus base64 overhead
	handshakeTimeout = 10 * time.Second
)

// handshakeError is a refused connect. It is reported to the peer as an
// error response before the socket closes.
type handshakeError struct {
	reqID string
	shape ErrorShape
}

func (e *handshakeError) Error() string { return e.shape.Code + ": " + e.shape.Message }

func refuse(reqID, code, message string) error {
	return &handshakeError{reqID: reqID, shape: ErrorShape{Code: code, Message: message}}
}

// handleWebSocket runs one connection: upgrade, handshake, then frames
// until the peer leaves or the server stops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := s.log.With("remote", r.RemoteAddr)
	if !s.limiter.allow(r.RemoteAddr) {
		log.Warn().Msg("too many failed handshakes")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		log.Warn().Err(err).Msg("handshake failed")
		s.limiter.recordFailure(r.RemoteAddr)
		var he *handshakeError
		if errors.As(err, &he) {
			conn.WriteJSON(NewErrorResponse(he.reqID, he.shape))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, he.shape.Message))
		}
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()
	s.serveFrames(client)
}

// handshake sends a challenge, expects a connect request carrying the
// credentials and answers it with hello.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	var req Frame
	if err := conn.ReadJSON(&req); err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}
	if req.Type != FrameTypeRequest || req.Method != "connect" {
		return nil, refuse(req.ID, "protocol_error", "expected connect request")
	}
	var params ConnectParams
	if err := req.Decode(&params); err != nil {
		return nil, refuse(req.ID, "invalid_params", "invalid connect params")
	}
	auth := Authorize(s.auth, params.Auth)
	if !auth.OK {
		return nil, refuse(req.ID, "unauthorized", auth.Reason)
	}

	client := NewClient(conn, params.Client, auth)
	hello, err := NewResponse(req.ID, s.hello(client))
	if err != nil {
		return nil, err
	}
	if err := client.Send(hello); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	s.log.Info().
		Str("connId", client.ConnID).
		Str("chatId", client.ChatID).
		Str("authMethod", auth.Method).
		Msg("client authenticated")
	return client, nil
}

func (s *Server) hello(c *Client) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: version.Version, Commit: version.Commit, ConnID: c.ConnID},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventChallenge, EventChatReply},
		},
		ChatID: c.ChatID,
	}
}

// serveFrames answers request frames until the connection drops.
func (s *Server) serveFrames(c *Client) {
	log := s.log.With("connId", c.ConnID)
	for {
		frame, err := c.ReadFrame()
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			log.Debug().Msg("client closed connection")
			return
		case err != nil:
			log.Warn().Err(err).Msg("read error")
			return
		case frame.Type != FrameTypeRequest:
			log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		h, ok := s.handlers[frame.Method]
		if !ok {
			c.RespondError(frame.ID, ErrorShape{Code: "method_not_found", Message: "unknown method: " + frame.Method})
			continue
		}
		h(&RequestContext{Client: c, Frame: frame, Server: s})
	}
}
