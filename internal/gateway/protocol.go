package gateway

import "encoding/json"

// A frame is a request ("req") from the browser, the response ("res")
// to it, or an event pushed by the server.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

const ProtocolVersion = 1

// Events pushed to web clients.
const (
	EventChallenge = "connect.challenge"
	EventChatReply = "chat.reply"
)

// Frame is every message on the socket. Which fields are set depends on
// Type: ID, Method and Params on requests; ID, OK and Payload or Error on
// responses; Event, Seq and Payload on events.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// Decode unmarshals a request's params into target. Absent params leave
// target untouched.
func (f Frame) Decode(target any) error {
	if len(f.Params) == 0 {
		return nil
	}
	return json.Unmarshal(f.Params, target)
}

type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectParams answers the challenge.
type ConnectParams struct {
	Client ClientInfo   `json:"client"`
	Auth   *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting client. ID is the stable chat id
// the web conversation is keyed on; reconnecting with the same ID resumes
// the same conversation and receives its reminders.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
}

type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK accepts a connect and tells the client which chat it is in.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
	ChatID   string     `json:"chatId"`
}

type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ChatSendParams is the chat.send request. Image is base64 encoded.
type ChatSendParams struct {
	Message string `json:"message,omitempty"`
	Image   string `json:"image,omitempty"`
}

// ChatReply is the payload of a chat.reply event.
type ChatReply struct {
	Text    string `json:"text"`
	ReplyTo string `json:"replyTo,omitempty"`
}

func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, err
}

// NewResponse answers request id with payload.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	return Frame{Type: FrameTypeResponse, ID: id, OK: ptr(true), Payload: raw}, err
}

func NewErrorResponse(id string, shape ErrorShape) Frame {
	return Frame{Type: FrameTypeResponse, ID: id, OK: ptr(false), Error: &shape}
}

// NewEvent builds a server-pushed event. seq increases per server so a
// client can spot gaps after reconnecting.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, err
}

func ptr[T any](v T) *T { return &v }
