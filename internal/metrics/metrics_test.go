package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Independent(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()

	a.ReminderCommitted()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.RemindersCommitted))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.RemindersCommitted))
}

func TestRecorders(t *testing.T) {
	m := New()

	m.MessageReceived("irc")
	m.MessageReceived("irc")
	m.StateReached("WAIT_DAYS")
	m.SetActiveSessions(3)
	m.ObserveExtraction("text", "ok", 120*time.Millisecond)
	m.ReminderFired("sent")
	m.ReminderPastDue()
	m.SetArmedTimers(4)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Messages.WithLabelValues("irc")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transitions.WithLabelValues("WAIT_DAYS")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Extractions.WithLabelValues("text", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RemindersFired.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RemindersPastDue))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.ArmedTimers))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageReceived("irc")
		m.StateReached("CONFIRM")
		m.SetActiveSessions(1)
		m.ObserveExtraction("image", "error", time.Second)
		m.ReminderCommitted()
		m.ReminderFired("failed")
		m.ReminderPastDue()
		m.SetArmedTimers(0)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ReminderCommitted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "validade_reminders_committed_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
