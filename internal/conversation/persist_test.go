package conversation

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/reminder"
	"github.com/soyeahso/validade/internal/store"
)

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

// A confirmed conversation ends up as a stored, armed reminder carrying
// exactly the fields the user confirmed.
func TestEngine_ConfirmPersistsReminder(t *testing.T) {
	ctx := context.Background()
	log := logging.New(io.Discard, "error")
	now := func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, brt) }

	st, err := store.OpenReminders(ctx, store.Options{Path: store.MemoryPath}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sched := reminder.New(st, nil, reminder.Config{Location: brt, Hour: 9}, log,
		reminder.WithClock(now, func(time.Duration, func()) reminder.Timer { return idleTimer{} }))
	t.Cleanup(sched.Stop)

	norm := dates.New(brt)
	norm.Now = now
	ext := &fakeExtractor{image: "2027-01-10"}
	engine := NewEngine(NewSessionStore(0, 0), ext, sched, norm, log, WithClock(now))

	engine.Handle(ctx, photo(""))
	engine.Handle(ctx, text("7"))
	engine.Handle(ctx, text("Leite"))
	sess, ok := engine.Sessions().Get("console:ana")
	require.True(t, ok)
	id := sess.ID
	engine.Handle(ctx, text("sim"))

	all, err := st.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "console:ana", got.ChatID)
	assert.Equal(t, "Leite", got.Product)
	assert.Equal(t, "2027-01-10", got.ExpiresOn)
	assert.Equal(t, 7, got.LeadDays)
	assert.Nil(t, got.SentAt)

	at, armed := sched.Armed(id)
	require.True(t, armed)
	assert.Equal(t, time.Date(2027, 1, 3, 9, 0, 0, 0, brt), at)

	// Replaying the commit for the same session keeps one row.
	require.NoError(t, sched.Commit(ctx, got))
	all, err = st.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
