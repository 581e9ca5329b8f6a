// Package reminder persists confirmed reminders and fires each one once,
// at the configured time of day, lead-days before the expiration date.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/hooks"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/metrics"
	"github.com/soyeahso/validade/internal/store"
)

// ErrIncompleteReminder is returned by Commit when a required field is
// missing or invalid. Nothing is persisted.
var ErrIncompleteReminder = errors.New("incomplete reminder")

// PersistenceError reports a storage failure surfaced to the caller, who
// may retry.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("reminder %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the storage the scheduler needs.
type Store interface {
	FindAll(ctx context.Context) ([]domain.Reminder, error)
	Get(ctx context.Context, id string) (domain.Reminder, error)
	Insert(ctx context.Context, r domain.Reminder) error
	UpdateSentAt(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Notifier delivers a rendered reminder to a conversation.
type Notifier interface {
	Notify(ctx context.Context, conversationID, text string) error
}

// Config holds the scheduler's injected time settings.
type Config struct {
	Location    *time.Location // reference timezone
	Hour        int            // local fire time of day
	Minute      int
	SendTimeout time.Duration
}

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

type armed struct {
	t      Timer
	gen    uint64
	fireAt time.Time
}

// Scheduler owns one timer per pending reminder id.
type Scheduler struct {
	store   Store
	notify  Notifier
	cfg     Config
	log     *logging.Logger
	hooks   *hooks.Manager
	metrics *metrics.Metrics

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) Timer

	mu      sync.Mutex
	timers  map[string]armed
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithHooks emits reminder_committed and reminder_fired on h.
func WithHooks(h *hooks.Manager) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// WithMetrics records commits, fires and armed timers on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock replaces time.Now and time.AfterFunc.
func WithClock(now func() time.Time, afterFunc func(time.Duration, func()) Timer) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
		if afterFunc != nil {
			s.afterFunc = afterFunc
		}
	}
}

// New creates a Scheduler. Nothing is armed until Resume or Commit.
func New(st Store, n Notifier, cfg Config, log *logging.Logger, opts ...Option) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	s := &Scheduler{
		store:  st,
		notify: n,
		cfg:    cfg,
		log:    log.Sub("reminder"),
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		timers: make(map[string]armed),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks that r can be committed.
func Validate(r domain.Reminder) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrIncompleteReminder)
	case r.ChatID == "":
		return fmt.Errorf("%w: missing conversation", ErrIncompleteReminder)
	case r.Product == "":
		return fmt.Errorf("%w: missing %s", ErrIncompleteReminder, domain.FieldProduct)
	case r.LeadDays < 0 || r.LeadDays > domain.MaxLeadDays:
		return fmt.Errorf("%w: %s out of range: %d", ErrIncompleteReminder, domain.FieldLeadDays, r.LeadDays)
	}
	if _, ok := dates.Parse(r.ExpiresOn); !ok {
		return fmt.Errorf("%w: invalid %s %q", ErrIncompleteReminder, domain.FieldExpiresOn, r.ExpiresOn)
	}
	return nil
}

// Commit persists r and schedules it. A duplicate id means the reminder
// was already committed by an earlier attempt and is not an error: the
// stored row, not r, is what gets scheduled, so a reminder that already
// fired stays sent.
func (s *Scheduler) Commit(ctx context.Context, r domain.Reminder) error {
	if err := Validate(r); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	err := s.store.Insert(ctx, r)
	switch {
	case errors.Is(err, store.ErrConflict):
		s.log.Info().Str("id", r.ID).Msg("reminder already committed")
		stored, err := s.store.Get(ctx, r.ID)
		if err != nil {
			return &PersistenceError{Op: "get", ID: r.ID, Err: err}
		}
		r = stored
	case err != nil:
		return &PersistenceError{Op: "insert", ID: r.ID, Err: err}
	default:
		s.log.Info().
			Str("id", r.ID).
			Str("chat", r.ChatID).
			Str("produto", r.Product).
			Str("validade", r.ExpiresOn).
			Int("diasAntes", r.LeadDays).
			Msg("reminder committed")
		s.metrics.ReminderCommitted()
		s.hooks.EmitAsync(context.WithoutCancel(ctx), hooks.EventReminderCommitted, payload(r))
	}

	return s.Schedule(r)
}

// FireAt returns the instant r is due: the expiration date at the
// configured time of day in the reference timezone, minus the lead days.
func (s *Scheduler) FireAt(r domain.Reminder) (time.Time, error) {
	d, ok := dates.Parse(r.ExpiresOn)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", ErrIncompleteReminder, domain.FieldExpiresOn, r.ExpiresOn)
	}
	return d.AddDays(-r.LeadDays).At(s.cfg.Location, s.cfg.Hour, s.cfg.Minute), nil
}

// Schedule arms the timer for r, replacing any timer already armed for
// the same id. Sent and past-due reminders arm nothing and return nil.
func (s *Scheduler) Schedule(r domain.Reminder) error {
	fireAt, err := s.FireAt(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.disarmLocked(r.ID)

	if r.Sent() {
		s.log.Debug().Str("id", r.ID).Msg("reminder already sent, not scheduling")
		return nil
	}

	delay := fireAt.Sub(s.now())
	if delay <= 0 {
		s.log.Warn().
			Str("id", r.ID).
			Time("fireAt", fireAt).
			Msg("reminder fire time already passed, not scheduling")
		s.metrics.ReminderPastDue()
		return nil
	}

	s.gen++
	gen := s.gen
	id := r.ID
	t := s.afterFunc(delay, func() { s.fire(id, gen, r) })
	s.timers[id] = armed{t: t, gen: gen, fireAt: fireAt}
	s.metrics.SetArmedTimers(len(s.timers))

	s.log.Info().Str("id", id).Time("fireAt", fireAt).Dur("in", delay).Msg("reminder scheduled")
	return nil
}

// fire runs on the timer goroutine. A timer superseded by a later Schedule
// or Cancel finds a different generation and does nothing.
func (s *Scheduler) fire(id string, gen uint64, r domain.Reminder) {
	s.mu.Lock()
	cur, ok := s.timers[id]
	if !ok || cur.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.metrics.SetArmedTimers(len(s.timers))
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	outcome := "sent"
	if err := s.notify.Notify(ctx, r.ChatID, Render(r)); err != nil {
		outcome = "failed"
		s.log.Error().Err(err).Str("id", id).Str("chat", r.ChatID).Msg("reminder notification failed")
	} else {
		s.log.Info().Str("id", id).Str("chat", r.ChatID).Msg("reminder sent")
	}
	s.metrics.ReminderFired(outcome)

	// Marked even when the send failed: delivery is at-least-once per
	// attempt, and a failed send is not retried.
	if err := s.store.UpdateSentAt(ctx, id, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("marking reminder sent failed")
	}

	data := payload(r)
	data["outcome"] = outcome
	s.hooks.Emit(ctx, hooks.EventReminderFired, data)
}

// Cancel disarms the timer for id, if any.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disarmLocked(id)
}

func (s *Scheduler) disarmLocked(id string) bool {
	cur, ok := s.timers[id]
	if !ok {
		return false
	}
	cur.t.Stop()
	delete(s.timers, id)
	s.metrics.SetArmedTimers(len(s.timers))
	return true
}

// List returns the stored reminders of one conversation, or all of them
// when conversationID is empty.
func (s *Scheduler) List(ctx context.Context, conversationID string) ([]domain.Reminder, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "find all", ID: "*", Err: err}
	}
	if conversationID == "" {
		return all, nil
	}
	out := all[:0]
	for _, r := range all {
		if r.ChatID == conversationID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes the reminder from storage, then cancels its timer. A
// storage failure leaves the timer armed, matching the row that is still
// there.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Cancel(id)
			return err
		}
		return &PersistenceError{Op: "delete", ID: id, Err: err}
	}
	s.Cancel(id)
	s.log.Info().Str("id", id).Msg("reminder deleted")
	return nil
}

// Resume rebuilds the timer set from storage. A reminder that fails to
// schedule is logged and skipped. It returns the number of armed timers.
func (s *Scheduler) Resume(ctx context.Context) (int, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "find all", ID: "*", Err: err}
	}

	for _, r := range all {
		if err := s.Schedule(r); err != nil {
			s.log.Error().Err(err).Str("id", r.ID).Msg("resume: scheduling reminder failed")
		}
	}

	n := s.ArmedCount()
	s.log.Info().Int("loaded", len(all)).Int("armed", n).Msg("reminders resumed")
	return n, nil
}

// Stop disarms every timer and waits for in-flight fires to finish.
// Schedule is a no-op afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, cur := range s.timers {
		cur.t.Stop()
		delete(s.timers, id)
	}
	s.metrics.SetArmedTimers(0)
	s.mu.Unlock()
	s.wg.Wait()
}

// Armed reports whether a timer is armed for id and when it fires.
func (s *Scheduler) Armed(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[id]
	return cur.fireAt, ok
}

// ArmedCount returns the number of armed timers.
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Render formats the notification text for r.
func Render(r domain.Reminder) string {
	when := r.ExpiresOn
	if d, ok := dates.Parse(r.ExpiresOn); ok {
		when = d.Display()
	}
	switch r.LeadDays {
	case 0:
		return fmt.Sprintf("⏰ Lembrete: %s vence hoje (%s).", r.Product, when)
	case 1:
		return fmt.Sprintf("⏰ Lembrete: %s vence amanhã (%s).", r.Product, when)
	default:
		return fmt.Sprintf("⏰ Lembrete: %s vence em %d dias (%s).", r.Product, r.LeadDays, when)
	}
}

func payload(r domain.Reminder) map[string]any {
	return map[string]any{
		"id":        r.ID,
		"chatId":    r.ChatID,
		"produto":   r.Product,
		"validade":  r.ExpiresOn,
		"diasAntes": r.LeadDays,
	}
}
