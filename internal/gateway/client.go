package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/validade/internal/logging"
)

// writeTimeout bounds a single frame write to a slow browser.
const writeTimeout = 10 * time.Second

var ErrClientClosed = errors.New("client connection closed")

// Client is one authenticated WebSocket connection. Several clients may
// share a ChatID, e.g. two tabs open on the same conversation.
type Client struct {
	ConnID string
	ChatID string
	Info   ClientInfo
	Auth   AuthResult

	conn *websocket.Conn

	wmu    sync.Mutex
	closed bool
}

// NewClient wraps an authenticated connection. A client that sent no id
// gets a conversation of its own, keyed on the connection.
func NewClient(conn *websocket.Conn, info ClientInfo, auth AuthResult) *Client {
	id := uuid.NewString()
	chat := info.ID
	if chat == "" {
		chat = id
	}
	return &Client{ConnID: id, ChatID: chat, Info: info, Auth: auth, conn: conn}
}

// Send writes frame. Writes are serialized since the read loop, the
// bot's replies and RPC responses all write to the same socket.
func (c *Client) Send(frame Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(frame)
}

func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next frame. Only the read loop calls it.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	err := c.conn.ReadJSON(&f)
	return f, err
}

// Close is idempotent.
func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// ClientRegistry indexes live connections by connection and by chat.
type ClientRegistry struct {
	log *logging.Logger

	mu     sync.RWMutex
	byConn map[string]*Client
	byChat map[string]map[string]*Client
}

func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		log:    log,
		byConn: make(map[string]*Client),
		byChat: make(map[string]map[string]*Client),
	}
}

func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.byConn[c.ConnID] = c
	conns := r.byChat[c.ChatID]
	if conns == nil {
		conns = make(map[string]*Client)
		r.byChat[c.ChatID] = conns
	}
	conns[c.ConnID] = c
	n := len(conns)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("chatId", c.ChatID).Int("chatConns", n).Msg("client connected")
}

func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	c, ok := r.byConn[connID]
	if ok {
		r.drop(c)
	}
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", connID).Str("chatId", c.ChatID).Msg("client disconnected")
	}
}

// drop unindexes c. Callers hold r.mu.
func (r *ClientRegistry) drop(c *Client) {
	delete(r.byConn, c.ConnID)
	if conns := r.byChat[c.ChatID]; conns != nil {
		delete(conns, c.ConnID)
		if len(conns) == 0 {
			delete(r.byChat, c.ChatID)
		}
	}
}

// ByChat returns the connections open on chatID.
func (r *ClientRegistry) ByChat(chatID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byChat[chatID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// CloseAll closes and forgets every connection.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	all := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		all = append(all, c)
		r.drop(c)
	}
	r.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
}
