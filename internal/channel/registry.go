// Package channel holds the chat transports the bot talks through and
// the registry that routes outbound text to them.
package channel

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownChannel is returned when a conversation names a channel that
// is not registered.
var ErrUnknownChannel = errors.New("unknown channel")

// statuser is implemented by channels that track their own connection
// state.
type statuser interface {
	Status() domain.ChannelStatus
}

// Registry holds the channels by ID. It is the outbound side of the
// reminder scheduler.
type Registry struct {
	log *logging.Logger

	mu   sync.RWMutex
	byID map[string]domain.Channel
}

func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{log: log.Sub("channels"), byID: map[string]domain.Channel{}}
}

// Register adds a channel, replacing any with the same ID.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	r.byID[ch.ID()] = ch
	r.mu.Unlock()
	r.log.Debug().Str("channel", ch.ID()).Msg("registered")
}

func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[id]
	return ch, ok
}

// List returns all channel IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byID))
}

// Status reports each channel in ID order. Channels that keep no state
// are assumed running.
func (r *Registry) Status() []domain.ChannelStatus {
	out := make([]domain.ChannelStatus, 0, r.Count())
	for id, ch := range r.sorted() {
		st := domain.ChannelStatus{ChannelID: id, Running: true}
		if s, ok := ch.(statuser); ok {
			st = s.Status()
		}
		out = append(out, st)
	}
	return out
}

// sorted iterates a snapshot of the channels in ID order.
func (r *Registry) sorted() iter.Seq2[string, domain.Channel] {
	r.mu.RLock()
	snap := maps.Clone(r.byID)
	r.mu.RUnlock()
	return func(yield func(string, domain.Channel) bool) {
		for _, id := range slices.Sorted(maps.Keys(snap)) {
			if !yield(id, snap[id]) {
				return
			}
		}
	}
}

// Notify sends text to the conversation identified by conversationID
// ("channel:chat"). The chat part is the send target.
func (r *Registry) Notify(ctx context.Context, conversationID, text string) error {
	key, ok := domain.ParseConversationKey(conversationID)
	if !ok {
		return fmt.Errorf("invalid conversation id %q", conversationID)
	}
	ch, ok := r.Get(key.ChannelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, key.ChannelID)
	}
	return ch.Send(ctx, domain.OutboundMessage{
		ChannelID: key.ChannelID,
		To:        key.ChatID,
		Body:      text,
	})
}

// Run starts every registered channel and blocks until all of them have
// returned. The first channel to fail cancels the rest. Returning because
// ctx was cancelled is not a failure.
func (r *Registry) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for id, ch := range r.sorted() {
		log := r.log.With("channel", id)
		log.Info().Msg("starting")
		g.Go(func() error {
			err := ch.Start(gctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("exited")
			return fmt.Errorf("channel %s: %w", id, err)
		})
	}
	return g.Wait()
}

// StopAll asks every channel to stop, in ID order. Failures are logged.
func (r *Registry) StopAll(ctx context.Context) {
	for id, ch := range r.sorted() {
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("stop failed")
		}
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
