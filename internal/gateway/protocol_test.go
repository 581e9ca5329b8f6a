package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameConstructors(t *testing.T) {
	req, err := NewRequest("1", "chat.send", ChatSendParams{Message: "leite"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeRequest, req.Type)
	assert.JSONEq(t, `{"message":"leite"}`, string(req.Params))

	res, err := NewResponse("1", map[string]bool{"queued": true})
	require.NoError(t, err)
	require.NotNil(t, res.OK)
	assert.True(t, *res.OK)

	bad := NewErrorResponse("1", ErrorShape{Code: "x", Message: "y"})
	assert.False(t, *bad.OK)
	assert.Equal(t, "x", bad.Error.Code)

	ev, err := NewEvent(EventChatReply, ChatReply{Text: "oi"}, 7)
	require.NoError(t, err)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","event":"chat.reply","seq":7,"payload":{"text":"oi"}}`, string(raw))
}

func TestNewClient_ChatID(t *testing.T) {
	c := NewClient(nil, ClientInfo{ID: "ana"}, AuthResult{OK: true})
	assert.Equal(t, "ana", c.ChatID)

	anon := NewClient(nil, ClientInfo{}, AuthResult{OK: true})
	assert.Equal(t, anon.ConnID, anon.ChatID)
	assert.NotEmpty(t, anon.ConnID)
}

func TestClientRegistry_ByChat(t *testing.T) {
	reg := NewClientRegistry(testLogger())
	a1 := NewClient(nil, ClientInfo{ID: "ana"}, AuthResult{OK: true})
	a2 := NewClient(nil, ClientInfo{ID: "ana"}, AuthResult{OK: true})
	b := NewClient(nil, ClientInfo{ID: "bia"}, AuthResult{OK: true})
	reg.Add(a1)
	reg.Add(a2)
	reg.Add(b)

	assert.Len(t, reg.ByChat("ana"), 2)
	assert.Len(t, reg.ByChat("bia"), 1)
	assert.Empty(t, reg.ByChat("caio"))
	assert.Equal(t, 3, reg.Count())

	reg.Remove(a1.ConnID)
	reg.Remove(a1.ConnID)
	assert.Equal(t, []*Client{a2}, reg.ByChat("ana"))
	assert.Equal(t, 2, reg.Count())

	reg.Remove(b.ConnID)
	assert.Empty(t, reg.ByChat("bia"))
	assert.NotContains(t, reg.byChat, "bia")
}
