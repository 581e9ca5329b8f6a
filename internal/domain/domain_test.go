package domain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ConversationKey tests ---

func TestConversationKeyString(t *testing.T) {
	tests := []struct {
		name string
		key  ConversationKey
		want string
	}{
		{"irc channel", ConversationKey{ChannelID: "irc", ChatID: "#general"}, "irc:#general"},
		{"web chat", ConversationKey{ChannelID: "web", ChatID: "conn-1"}, "web:conn-1"},
		{"empty fields", ConversationKey{}, ":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestParseConversationKey(t *testing.T) {
	k, ok := ParseConversationKey("irc:#general")
	require.True(t, ok)
	assert.Equal(t, ConversationKey{ChannelID: "irc", ChatID: "#general"}, k)

	k, ok = ParseConversationKey("web:a:b")
	require.True(t, ok)
	assert.Equal(t, "a:b", k.ChatID)

	for _, bad := range []string{"", "irc", ":chat", "irc:"} {
		_, ok := ParseConversationKey(bad)
		assert.False(t, ok, bad)
	}
}

// --- Message tests ---

func TestInboundMessageMedia(t *testing.T) {
	msg := InboundMessage{ChannelID: "web", ChatID: "c1", Body: "oi"}
	assert.False(t, msg.HasMedia())
	assert.Nil(t, msg.Image())

	msg.Media = []Attachment{
		{ID: "meta-only"},
		{ID: "img", MimeType: "image/jpeg", Load: BytesMedia([]byte{0xff, 0xd8})},
	}
	require.True(t, msg.HasMedia())
	assert.Equal(t, "img", msg.Image().ID)

	data, err := msg.Image().Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	_, err = msg.Media[0].Bytes(context.Background())
	assert.ErrorIs(t, err, ErrNoMedia)

	assert.Equal(t, ConversationKey{ChannelID: "web", ChatID: "c1"}, msg.Key())
}

func TestInboundMessageJSON_SkipsLoader(t *testing.T) {
	msg := InboundMessage{
		ID:        "msg-1",
		ChannelID: "irc",
		From:      "alice",
		ChatID:    "#general",
		ChatType:  ChatTypeDM,
		Body:      "hello",
		Timestamp: time.Now().UTC(),
		Media:     []Attachment{{ID: "a", Load: BytesMedia(nil)}},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "fromName")
	assert.NotContains(t, string(data), "load")
}

// --- Fields tests ---

func TestFields(t *testing.T) {
	var f Fields
	assert.True(t, f.Empty())
	assert.False(t, f.Complete())

	f.ExpiresOn = "2026-01-10"
	assert.True(t, f.Has(FieldExpiresOn))
	assert.False(t, f.Has(FieldLeadDays))
	assert.False(t, f.Empty())

	f.LeadDays = Days(0)
	assert.True(t, f.Has(FieldLeadDays), "zero lead days is a value")

	f.Product = "Leite"
	assert.True(t, f.Complete())
	assert.False(t, f.Has(Field("other")))
}

func TestFieldsJSON(t *testing.T) {
	data, err := json.Marshal(Fields{ExpiresOn: "2026-01-10", LeadDays: Days(7)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"validade":"2026-01-10","diasAntes":7}`, string(data))
}

// --- Reminder tests ---

func TestReminderJSON(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	r := Reminder{
		ID:        "r-1",
		ChatID:    "irc:#general",
		Product:   "Leite",
		ExpiresOn: "2026-01-10",
		LeadDays:  7,
		CreatedAt: created,
	}
	assert.False(t, r.Sent())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	raw := string(data)
	assert.Contains(t, raw, `"produto":"Leite"`)
	assert.Contains(t, raw, `"validade":"2026-01-10"`)
	assert.Contains(t, raw, `"diasAntes":7`)
	assert.NotContains(t, raw, "sentAt")

	sent := created.Add(time.Hour)
	r.SentAt = &sent
	assert.True(t, r.Sent())
}

func TestStateConstants(t *testing.T) {
	assert.Equal(t, State("WAIT_IMAGE"), StateWaitImage)
	assert.Equal(t, State("WAIT_DAYS"), StateWaitDays)
	assert.Equal(t, State("WAIT_PRODUCT"), StateWaitProduct)
	assert.Equal(t, State("CONFIRM"), StateConfirm)
}
