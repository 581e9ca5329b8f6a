package irc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestNew(t *testing.T) {
	cfg := config.IRCConfig{
		Server:   "irc.libera.chat",
		Nick:     "validade",
		Channels: []string{"#casa"},
		UseTLS:   true,
	}
	ch := New(cfg, testLogger())
	assert.Equal(t, "irc", ch.ID())
	gc := ch.clientConfig()
	assert.Equal(t, 6697, gc.Port)
	require.NotNil(t, gc.TLSConfig)
	assert.Equal(t, "irc.libera.chat", gc.TLSConfig.ServerName)

	assert.Equal(t, 6667, New(config.IRCConfig{}, testLogger()).clientConfig().Port)
	assert.Equal(t, 7000, New(config.IRCConfig{Port: 7000, UseTLS: true}, testLogger()).clientConfig().Port)
}

func TestClientConfig_Password(t *testing.T) {
	sasl := New(config.IRCConfig{Nick: "validade", Password: "s3", SASL: true}, testLogger()).clientConfig()
	require.NotNil(t, sasl.SASL)
	assert.Empty(t, sasl.ServerPass)

	pass := New(config.IRCConfig{Nick: "validade", Password: "s3"}, testLogger()).clientConfig()
	assert.Nil(t, pass.SASL)
	assert.Equal(t, "s3", pass.ServerPass)

	none := New(config.IRCConfig{Nick: "validade"}, testLogger()).clientConfig()
	assert.Nil(t, none.SASL)
	assert.Empty(t, none.ServerPass)
}

func TestStatus_RecordsLastError(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	ch.setRunning(true, nil)
	assert.True(t, ch.Status().Running)

	ch.setRunning(false, errors.New("connection refused"))
	st := ch.Status()
	assert.False(t, st.Running)
	assert.False(t, st.Connected)
	assert.Equal(t, "connection refused", st.LastError)

	ch.setRunning(true, nil)
	assert.Empty(t, ch.Status().LastError)
}

func TestCapabilities(t *testing.T) {
	caps := New(config.IRCConfig{}, testLogger()).Capabilities()

	assert.Contains(t, caps.ChatTypes, domain.ChatTypeDM)
	assert.Contains(t, caps.ChatTypes, domain.ChatTypeGroup)
	assert.True(t, caps.Media)
	assert.False(t, caps.Reply)
}

func TestStatus_NotStarted(t *testing.T) {
	status := New(config.IRCConfig{}, testLogger()).Status()

	assert.Equal(t, "irc", status.ChannelID)
	assert.False(t, status.Connected)
	assert.False(t, status.Running)
	assert.Empty(t, status.LastError)
}

func TestSend_NotConnected(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	err := ch.Send(context.Background(), domain.OutboundMessage{To: "#casa", Body: "oi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestDeliver(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())

	var received domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) { received = msg })

	ch.deliver("ana", "#casa", domain.ChatTypeGroup, "leite https://img.example/foto.jpg")
	assert.Equal(t, "irc", received.ChannelID)
	assert.Equal(t, "ana", received.From)
	assert.Equal(t, "#casa", received.ChatID)
	assert.Equal(t, domain.ChatTypeGroup, received.ChatType)
	assert.Equal(t, "leite", received.Body)
	require.Len(t, received.Media, 1)
	assert.Equal(t, "https://img.example/foto.jpg", received.Media[0].Filename)
	assert.True(t, received.HasMedia())
	assert.Equal(t, "irc:#casa", received.Key().String())
}

func TestAllowed(t *testing.T) {
	open := New(config.IRCConfig{}, testLogger())
	assert.True(t, open.allowed("qualquer"))

	closed := New(config.IRCConfig{AllowFrom: []string{"Ana", "bia"}}, testLogger())
	assert.True(t, closed.allowed("ana"))
	assert.True(t, closed.allowed("BIA"))
	assert.False(t, closed.allowed("carlos"))
}

func TestAddressed(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{"validade: leite 10/01", "leite 10/01", true},
		{"Validade, sim", "sim", true},
		{"@validade 7", "7", true},
		{"validade", "", true},
		{"validades: oi", "", false},
		{"oi validade", "", false},
		{"val", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, ok := addressed("validade", tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageLinks(t *testing.T) {
	text, links := imageLinks("olha https://x.example/a.JPG e https://x.example/b.png?s=1")
	assert.Equal(t, "olha e", text)
	assert.Equal(t, []string{"https://x.example/a.JPG", "https://x.example/b.png?s=1"}, links)

	text, links = imageLinks("https://x.example/pagina.html")
	assert.Equal(t, "https://x.example/pagina.html", text)
	assert.Empty(t, links)
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	f := newFetcher()
	data, err := f.media(srv.URL + "/ok.jpg")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata"), data)

	_, err = f.media(srv.URL + "/missing.jpg")(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, slices.Collect(splitMessage("hello world", maxLineLen)))
	assert.Equal(t,
		[]string{"📅 Validade: 10/01/2027", "Quantos dias antes?"},
		slices.Collect(splitMessage("📅 Validade: 10/01/2027\n\nQuantos dias antes?", maxLineLen)))
	assert.Empty(t, slices.Collect(splitMessage("", maxLineLen)))

	long := strings.Repeat("ã", 30) // 60 bytes
	chunks := slices.Collect(splitMessage(long, 25))
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 25)
		assert.True(t, strings.HasPrefix(c, "ã"))
	}
	assert.Equal(t, long, strings.Join(chunks, ""))
}
