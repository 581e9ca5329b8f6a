// Package hooks dispatches bot lifecycle events to registered handlers
// and configured shell commands.
package hooks

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/validade/internal/logging"
)

const (
	EventMessageReceived   = "message_received"
	EventMessageSending    = "message_sending"
	EventSessionStart      = "session_start"
	EventSessionEnd        = "session_end"
	EventReminderCommitted = "reminder_committed"
	EventReminderFired     = "reminder_fired"
	EventBotStart          = "bot_start"
	EventBotStop           = "bot_stop"
)

// AllEvents lists the events a hook may subscribe to.
var AllEvents = []string{
	EventMessageReceived,
	EventMessageSending,
	EventSessionStart,
	EventSessionEnd,
	EventReminderCommitted,
	EventReminderFired,
	EventBotStart,
	EventBotStop,
}

func Known(event string) bool { return slices.Contains(AllEvents, event) }

// Payload is what a handler receives, and what command hooks read as
// JSON on stdin.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to one event. Its error is logged and never reaches the
// code that emitted the event.
type Handler func(ctx context.Context, p Payload) error

type subscriber struct {
	name string
	fn   Handler
}

// Manager fans events out to subscribers. A nil *Manager drops every
// event, so components can hold one unconditionally.
type Manager struct {
	log *logging.Logger

	mu   sync.RWMutex
	subs map[string][]subscriber

	inflight sync.WaitGroup
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		log:  log.Sub("hooks"),
		subs: make(map[string][]subscriber),
	}
}

// On subscribes fn to event under name, which only shows up in logs.
func (m *Manager) On(event, name string, fn Handler) {
	m.mu.Lock()
	m.subs[event] = append(m.subs[event], subscriber{name: name, fn: fn})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Count returns how many subscribers event has.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[event])
}

func (m *Manager) subscribers(event string) []subscriber {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.subs[event])
}

// Emit runs the subscribers of event one after another, in the order
// they were registered.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.subscribers(event) {
		m.call(ctx, s, p)
	}
}

// EmitAsync runs each subscriber of event on its own goroutine and
// returns at once. Wait blocks until they are done.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.subscribers(event) {
		m.inflight.Add(1)
		go func() {
			defer m.inflight.Done()
			m.call(ctx, s, p)
		}()
	}
}

// Wait blocks until every EmitAsync handler has returned or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	if m == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) call(ctx context.Context, s subscriber, p Payload) {
	if err := s.fn(ctx, p); err != nil {
		m.log.Warn().Err(err).
			Str("event", p.Event).
			Str("handler", s.name).
			Msg("hook failed")
	}
}
