package conversation

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/extract"
	"github.com/soyeahso/validade/internal/hooks"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/metrics"
)

// Extractor reads reminder facts from message content. Implementations
// never fail; nothing found is a nil or empty result.
type Extractor interface {
	Text(ctx context.Context, raw string) *domain.Fields
	Image(ctx context.Context, image []byte) string
}

// Committer persists and schedules a confirmed reminder. Committing the
// same reminder id twice must succeed without a second record.
type Committer interface {
	Commit(ctx context.Context, r domain.Reminder) error
}

// ReplyFunc delivers the engine's reply to a message.
type ReplyFunc func(ctx context.Context, msg domain.InboundMessage, reply string)

// Engine runs the reminder dialogue. Messages for one conversation are
// handled strictly in arrival order; different conversations run in
// parallel.
type Engine struct {
	sessions *SessionStore
	extract  Extractor
	commit   Committer
	dates    *dates.Normalizer
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	log      *logging.Logger
	now      func() time.Time
	reply    ReplyFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mailboxes map[string][]domain.InboundMessage
	closed    bool
	wg        sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHooks emits conversation events on h.
func WithHooks(h *hooks.Manager) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// WithMetrics records message and state counters on m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithReply sets where Enqueue sends replies.
func WithReply(fn ReplyFunc) EngineOption {
	return func(e *Engine) { e.reply = fn }
}

// NewEngine creates an Engine.
func NewEngine(sessions *SessionStore, ext Extractor, commit Committer, norm *dates.Normalizer, log *logging.Logger, opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		sessions:  sessions,
		extract:   ext,
		commit:    commit,
		dates:     norm,
		log:       log.Sub("conversation"),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		mailboxes: make(map[string][]domain.InboundMessage),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue queues msg on its conversation's mailbox and returns at once.
// It reports false after Close.
func (e *Engine) Enqueue(msg domain.InboundMessage) bool {
	key := msg.Key().String()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.log.Warn().Str("conversation", key).Msg("engine closed, message not queued")
		return false
	}
	queue, draining := e.mailboxes[key]
	e.mailboxes[key] = append(queue, msg)
	if !draining {
		e.wg.Add(1)
		go e.drain(key)
	}
	return true
}

// drain handles queued messages for key until the mailbox is empty.
func (e *Engine) drain(key string) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		queue := e.mailboxes[key]
		if len(queue) == 0 {
			delete(e.mailboxes, key)
			e.mu.Unlock()
			return
		}
		msg := queue[0]
		e.mailboxes[key] = queue[1:]
		e.mu.Unlock()

		reply := e.Handle(e.ctx, msg)
		if reply != "" && e.reply != nil {
			e.reply(e.ctx, msg, reply)
		}
	}
}

// Close stops accepting messages and waits for queued ones to finish, or
// for ctx to expire, whichever comes first.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	defer e.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sessions returns the engine's session store.
func (e *Engine) Sessions() *SessionStore {
	return e.sessions
}

// Handle processes one message synchronously and returns the reply.
// Callers must not run Handle concurrently for the same conversation;
// Enqueue guarantees that.
func (e *Engine) Handle(ctx context.Context, msg domain.InboundMessage) string {
	key := msg.Key()
	log := e.log.With("conversation", key.String())

	e.metrics.MessageReceived(msg.ChannelID)
	e.hooks.EmitAsync(ctx, hooks.EventMessageReceived, map[string]any{
		"conversation": key.String(),
		"from":         msg.From,
		"body":         msg.Body,
		"media":        msg.HasMedia(),
	})

	if !msg.HasMedia() && IsCancel(msg.Body) {
		sess, ok := e.sessions.Get(key.String())
		if !ok {
			return msgNothingToStart
		}
		e.end(ctx, sess, "cancelled")
		log.Info().Str("session", sess.ID).Msg("session cancelled")
		return msgCancelled
	}

	sess, created := e.sessions.GetOrCreate(key)
	if created {
		log.Info().Str("session", sess.ID).Msg("session started")
		e.hooks.EmitAsync(ctx, hooks.EventSessionStart, map[string]any{
			"conversation": key.String(),
			"session":      sess.ID,
		})
	}

	if sess.State == domain.StateConfirm && !msg.HasMedia() {
		switch classify(msg.Body) {
		case answerYes:
			return e.confirm(ctx, sess)
		case answerNo:
			e.end(ctx, sess, "denied")
			log.Info().Str("session", sess.ID).Msg("reminder discarded")
			return msgDiscarded
		}
	}

	filled := e.collect(ctx, sess, msg)
	sess.State = NextState(sess.Draft)
	e.sessions.Save(sess)
	e.metrics.StateReached(string(sess.State))
	e.metrics.SetActiveSessions(e.sessions.Len())

	log.Info().
		Str("session", sess.ID).
		Str("state", string(sess.State)).
		Int("filled", len(filled)).
		Msg("message handled")

	next := prompt(sess.State, sess.Draft, e.today())
	if fb := feedback(filled, sess.Draft); fb != "" {
		return fb + "\n" + next
	}
	if created {
		return next
	}
	return msgNotUnderstood + " " + next
}

// collect runs extraction for msg and merges the results into the draft.
// The image result is merged first so it wins over a date in the text.
func (e *Engine) collect(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) []domain.Field {
	state := sess.State
	draft := &sess.Draft
	var filled []domain.Field

	if att := msg.Image(); att != nil {
		data, err := att.Bytes(ctx)
		if err != nil {
			e.log.Warn().Err(err).Str("attachment", att.ID).Msg("failed to load attachment")
		} else if d := e.extract.Image(ctx, data); d != "" {
			filled = append(filled, Merge(draft, &domain.Fields{ExpiresOn: d})...)
		}
	}

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return filled
	}

	if state == domain.StateWaitDays && !draft.Has(domain.FieldLeadDays) && e.dates.Normalize(body) == "" {
		if n, ok := leadDaysLiteral(body); ok {
			return append(filled, Merge(draft, &domain.Fields{LeadDays: &n})...)
		}
	}

	filled = append(filled, Merge(draft, e.extract.Text(ctx, body))...)

	// Local fallbacks for the fact the state is asking for.
	switch state {
	case domain.StateWaitImage:
		if !draft.Has(domain.FieldExpiresOn) {
			if d := e.dates.Normalize(body); d != "" {
				filled = append(filled, Merge(draft, &domain.Fields{ExpiresOn: d})...)
			}
		}
	case domain.StateWaitProduct:
		if !draft.Has(domain.FieldProduct) {
			if p := extract.CleanProduct(body); p != "" {
				filled = append(filled, Merge(draft, &domain.Fields{Product: p})...)
			}
		}
	}

	slices.SortStableFunc(filled, func(a, b domain.Field) int {
		return fieldOrder(a) - fieldOrder(b)
	})
	return filled
}

func fieldOrder(f domain.Field) int {
	switch f {
	case domain.FieldExpiresOn:
		return 0
	case domain.FieldLeadDays:
		return 1
	default:
		return 2
	}
}

// confirm commits a complete draft. On failure the session stays open in
// CONFIRM so the user can retry; the retry reuses the session id as the
// reminder id.
func (e *Engine) confirm(ctx context.Context, sess *domain.Session) string {
	if !sess.Draft.Complete() {
		sess.State = NextState(sess.Draft)
		e.sessions.Save(sess)
		return prompt(sess.State, sess.Draft, e.today())
	}

	r := domain.Reminder{
		ID:        sess.ID,
		ChatID:    sess.Key.String(),
		Product:   sess.Draft.Product,
		ExpiresOn: sess.Draft.ExpiresOn,
		LeadDays:  *sess.Draft.LeadDays,
		CreatedAt: e.now().UTC(),
	}
	if err := e.commit.Commit(ctx, r); err != nil {
		e.log.Error().Err(err).
			Str("conversation", r.ChatID).
			Str("reminder", r.ID).
			Msg("failed to commit reminder")
		e.sessions.Save(sess)
		return msgCommitFailed
	}

	e.end(ctx, sess, "committed")
	e.log.Info().
		Str("conversation", r.ChatID).
		Str("reminder", r.ID).
		Str("validade", r.ExpiresOn).
		Int("diasAntes", r.LeadDays).
		Msg("reminder committed")
	return committed(r)
}

// end destroys sess.
func (e *Engine) end(ctx context.Context, sess *domain.Session, reason string) {
	e.sessions.Delete(sess.Key.String())
	e.metrics.SetActiveSessions(e.sessions.Len())
	e.hooks.EmitAsync(ctx, hooks.EventSessionEnd, map[string]any{
		"conversation": sess.Key.String(),
		"session":      sess.ID,
		"reason":       reason,
	})
}

// Expired reports a session dropped by the store; wire it with OnExpire.
func (e *Engine) Expired(sess domain.Session) {
	e.log.Info().
		Str("conversation", sess.Key.String()).
		Str("session", sess.ID).
		Str("state", string(sess.State)).
		Msg("session expired")
	e.hooks.EmitAsync(e.ctx, hooks.EventSessionEnd, map[string]any{
		"conversation": sess.Key.String(),
		"session":      sess.ID,
		"reason":       "idle",
	})
}

func (e *Engine) today() dates.Date {
	return dates.Today(e.now(), e.dates.Location)
}
