// Package irc connects the bot to an IRC network through girc.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/version"
)

// maxLineLen keeps PRIVMSG lines under the 512 byte protocol limit once
// the prefix and target are added.
const maxLineLen = 400

// Channel implements domain.Channel for IRC. Private messages are always
// handled; in channels the bot only answers lines addressed to its nick.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	fetch  *fetcher
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg:   cfg,
		fetch: newFetcher(),
		log:   log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM, domain.ChatTypeGroup},
		Media:     true, // image links
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// setRunning records the connection state and, when err is non-nil, the
// reason it ended.
func (c *Channel) setRunning(running bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
	switch {
	case err != nil:
		c.lastErr = err.Error()
	case running:
		c.lastErr = ""
	}
}

// clientConfig derives the girc settings. The default port follows TLS;
// the password goes to SASL PLAIN when enabled, else to PASS.
func (c *Channel) clientConfig() girc.Config {
	cfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.cfg.Port,
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "Validade reminder bot",
		SSL:     c.cfg.UseTLS,
		Version: version.UserAgent(),
	}
	if cfg.Port == 0 {
		cfg.Port = 6667
		if c.cfg.UseTLS {
			cfg.Port = 6697
		}
	}
	if c.cfg.UseTLS {
		cfg.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	switch {
	case c.cfg.Password == "":
	case c.cfg.SASL:
		cfg.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	default:
		cfg.ServerPass = c.cfg.Password
	}
	return cfg
}

// Start connects and blocks until the connection ends. Cancelling ctx
// closes the connection and Start returns ctx.Err().
func (c *Channel) Start(ctx context.Context) error {
	cfg := c.clientConfig()
	client := girc.New(cfg)
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, func(*girc.Client, girc.Event) {
		c.log.Warn().Msg("link lost")
		c.setRunning(false, nil)
	})

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	c.setRunning(true, nil)

	c.log.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)).
		Str("nick", cfg.Nick).
		Bool("tls", cfg.SSL).
		Msg("dialing")

	stop := context.AfterFunc(ctx, client.Close)
	defer stop()

	err := client.Connect()
	if ctx.Err() != nil {
		c.setRunning(false, nil)
		return ctx.Err()
	}
	c.setRunning(false, err)
	if err != nil {
		return fmt.Errorf("irc %s: %w", cfg.Server, err)
	}
	return nil
}

// Stop sends QUIT. Start then returns once the server drops the link.
func (c *Channel) Stop(context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client != nil && client.IsConnected() {
		client.Quit("até logo")
	}
	c.setRunning(false, nil)
	return nil
}

// Send writes msg.Body to msg.To, a nick or #channel, one PRIVMSG per
// line.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	switch {
	case client == nil || !client.IsConnected():
		return errors.New("irc: not connected")
	case msg.To == "":
		return errors.New("irc: no target specified")
	}

	n := 0
	for line := range splitMessage(msg.Body, maxLineLen) {
		client.Cmd.Message(msg.To, line)
		n++
	}
	c.log.Debug().Str("to", msg.To).Int("lines", n).Msg("sent")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Strs("join", c.cfg.Channels).Msg("registered")
	client.Cmd.Join(c.cfg.Channels...)
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	nick := client.GetNick()
	from := e.Source.Name
	if strings.EqualFold(from, nick) {
		return
	}
	if !c.allowed(from) {
		c.log.Debug().Str("nick", from).Msg("ignoring message from nick not in allowFrom")
		return
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	if !e.IsFromChannel() {
		c.deliver(from, from, domain.ChatTypeDM, body)
		return
	}

	room := e.Params[0]
	if body, ok := addressed(nick, body); ok {
		if c.cfg.OpOnly && !isChannelOp(client, from, room) {
			c.log.Debug().Str("nick", from).Str("room", room).Msg("not an operator")
			return
		}
		c.deliver(from, room, domain.ChatTypeGroup, body)
	}
}

// allowed applies the allowFrom nick list. An empty list allows everyone.
func (c *Channel) allowed(nick string) bool {
	if len(c.cfg.AllowFrom) == 0 {
		return true
	}
	return slices.ContainsFunc(c.cfg.AllowFrom, func(n string) bool {
		return strings.EqualFold(n, nick)
	})
}

// isChannelOp reports +o or higher for nick in room.
func isChannelOp(client *girc.Client, nick, room string) bool {
	if user := client.LookupUser(nick); user != nil {
		p, ok := user.Perms.Lookup(room)
		return ok && p.IsAdmin()
	}
	return false
}

// deliver builds an InboundMessage and hands it to the handler. Image
// links in the body become lazily fetched attachments.
func (c *Channel) deliver(from, chatID string, chatType domain.ChatType, body string) {
	text, links := imageLinks(body)
	msg := domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: "irc",
		From:      from,
		FromName:  from,
		ChatID:    chatID,
		ChatType:  chatType,
		Body:      text,
		Timestamp: time.Now(),
	}
	for i, link := range links {
		msg.Media = append(msg.Media, domain.Attachment{
			ID:       fmt.Sprintf("%s-%d", msg.ID, i),
			Filename: link,
			Load:     c.fetch.media(link),
		})
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

// addressed reports whether body is directed at nick ("nick: ...",
// "nick, ...", "@nick ...") and returns the text after the address.
func addressed(nick, body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	trimmed = strings.TrimPrefix(trimmed, "@")
	if len(trimmed) < len(nick) || !strings.EqualFold(trimmed[:len(nick)], nick) {
		return "", false
	}
	rest := trimmed[len(nick):]
	if rest == "" {
		return "", true
	}
	switch rest[0] {
	case ':', ',', ' ':
		return strings.TrimSpace(rest[1:]), true
	}
	return "", false
}

// splitMessage yields PRIVMSG-sized pieces of text. Every input line is
// its own message, blank ones are skipped, and long ones are cut at rune
// boundaries.
func splitMessage(text string, maxLen int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for raw := range strings.Lines(text) {
			rest := strings.TrimRight(raw, " \r\n")
			for rest != "" {
				cut := min(maxLen, len(rest))
				for cut < len(rest) && cut > 0 && !utf8.RuneStart(rest[cut]) {
					cut--
				}
				if cut == 0 {
					cut = maxLen
				}
				if !yield(rest[:cut]) {
					return
				}
				rest = rest[cut:]
			}
		}
	}
}
