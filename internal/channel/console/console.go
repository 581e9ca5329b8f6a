// Package console implements a terminal channel: one local conversation
// read from standard input, replies written to standard output.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
)

// ChannelID is the console channel identifier.
const ChannelID = "console"

// photoCommand attaches a local image file: "/foto caminho/para/img.jpg
// legenda opcional".
const photoCommand = "/foto"

// Channel reads lines from in and writes replies to out.
type Channel struct {
	in   io.Reader
	out  io.Writer
	chat string
	log  *logging.Logger

	mu      sync.Mutex
	handler func(domain.InboundMessage)
	running bool
	done    chan struct{}
}

// New creates a console channel. chat names the local conversation.
func New(in io.Reader, out io.Writer, chat string, log *logging.Logger) *Channel {
	if chat == "" {
		chat = "local"
	}
	return &Channel{
		in:   in,
		out:  out,
		chat: chat,
		log:  log.Sub("console"),
		done: make(chan struct{}),
	}
}

func (c *Channel) ID() string { return ChannelID }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
		Media:     true,
	}
}

func (c *Channel) OnMessage(handler func(domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ChannelStatus{ChannelID: ChannelID, Connected: c.running, Running: c.running}
}

// Done is closed when input is exhausted.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Start reads input until EOF or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(c.done)
	}()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			msg, err := c.parse(line)
			if err != nil {
				c.mu.Lock()
				fmt.Fprintf(c.out, "erro: %v\n", err)
				c.mu.Unlock()
				continue
			}
			c.mu.Lock()
			handler := c.handler
			c.mu.Unlock()
			if handler != nil {
				handler(msg)
			}
		}
	}
}

// parse turns an input line into a message, loading the file named by
// the photo command.
func (c *Channel) parse(line string) (domain.InboundMessage, error) {
	msg := domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: ChannelID,
		From:      c.chat,
		FromName:  c.chat,
		ChatID:    c.chat,
		ChatType:  domain.ChatTypeDM,
		Body:      line,
		Timestamp: time.Now(),
	}

	rest, ok := strings.CutPrefix(strings.TrimSpace(line), photoCommand)
	if !ok || (rest != "" && rest[0] != ' ') {
		return msg, nil
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return msg, fmt.Errorf("uso: %s <arquivo> [legenda]", photoCommand)
	}
	path := fields[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return msg, fmt.Errorf("reading %s: %w", path, err)
	}
	msg.Body = strings.Join(fields[1:], " ")
	msg.Media = []domain.Attachment{{
		ID:       msg.ID,
		Filename: filepath.Base(path),
		Size:     int64(len(data)),
		Load:     domain.BytesMedia(data),
	}}
	return msg, nil
}

// Send prints the message body.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s\n\n", msg.Body)
	return err
}

// Stop is a no-op; Start returns when its context ends.
func (c *Channel) Stop(context.Context) error {
	return nil
}
