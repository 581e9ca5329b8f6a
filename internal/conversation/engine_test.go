package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/logging"
)

var brt = time.FixedZone("BRT", -3*60*60)

type fakeExtractor struct {
	mu        sync.Mutex
	text      func(string) *domain.Fields
	image     string
	textCalls []string
}

func (f *fakeExtractor) Text(_ context.Context, raw string) *domain.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls = append(f.textCalls, raw)
	if f.text == nil {
		return nil
	}
	return f.text(raw)
}

func (f *fakeExtractor) Image(context.Context, []byte) string {
	return f.image
}

type fakeCommitter struct {
	mu        sync.Mutex
	fail      error
	committed []domain.Reminder
}

func (f *fakeCommitter) Commit(_ context.Context, r domain.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.committed = append(f.committed, r)
	return nil
}

type harness struct {
	engine    *Engine
	extractor *fakeExtractor
	committer *fakeCommitter
}

func newHarness(t *testing.T, opts ...EngineOption) *harness {
	t.Helper()
	now := func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, brt) }
	norm := dates.New(brt)
	norm.Now = now

	h := &harness{extractor: &fakeExtractor{}, committer: &fakeCommitter{}}
	log := logging.New(io.Discard, "error")
	opts = append([]EngineOption{WithClock(now)}, opts...)
	h.engine = NewEngine(NewSessionStore(0, 0), h.extractor, h.committer, norm, log, opts...)
	return h
}

func text(body string) domain.InboundMessage {
	return domain.InboundMessage{ChannelID: "console", ChatID: "ana", From: "ana", Body: body}
}

func photo(caption string) domain.InboundMessage {
	msg := text(caption)
	msg.Media = []domain.Attachment{{ID: "p1", MimeType: "image/jpeg", Load: domain.BytesMedia([]byte{0xff, 0xd8})}}
	return msg
}

func (h *harness) session(t *testing.T) *domain.Session {
	t.Helper()
	sess, ok := h.engine.Sessions().Get("console:ana")
	require.True(t, ok, "no open session")
	return sess
}

func (h *harness) send(body string) string {
	return h.engine.Handle(context.Background(), text(body))
}

func TestEngine_PhotoFlow(t *testing.T) {
	h := newHarness(t)
	h.extractor.image = "2027-01-10"

	reply := h.engine.Handle(context.Background(), photo(""))
	assert.Contains(t, reply, "📅 Validade: 10/01/2027")
	assert.Contains(t, reply, "Quantos dias antes")
	assert.Equal(t, domain.StateWaitDays, h.session(t).State)

	reply = h.send("7")
	assert.Contains(t, reply, "⏳ Aviso: 7 dias antes")
	assert.Contains(t, reply, "nome do produto")
	assert.Equal(t, domain.StateWaitProduct, h.session(t).State)

	reply = h.send("Leite")
	assert.Contains(t, reply, "Produto: Leite")
	assert.Contains(t, reply, "03/01/2027")
	assert.Equal(t, domain.StateConfirm, h.session(t).State)
	id := h.session(t).ID

	reply = h.send("sim")
	assert.Contains(t, reply, "Leite")
	require.Len(t, h.committer.committed, 1)
	r := h.committer.committed[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "console:ana", r.ChatID)
	assert.Equal(t, "Leite", r.Product)
	assert.Equal(t, "2027-01-10", r.ExpiresOn)
	assert.Equal(t, 7, r.LeadDays)

	_, ok := h.engine.Sessions().Get("console:ana")
	assert.False(t, ok)
}

func TestEngine_LeadLiteralSkipsTextExtractor(t *testing.T) {
	h := newHarness(t)
	h.extractor.image = "2027-01-10"
	h.engine.Handle(context.Background(), photo(""))

	h.send("15 dias")
	require.NotNil(t, h.session(t).Draft.LeadDays)
	assert.Equal(t, 15, *h.session(t).Draft.LeadDays)
	assert.Empty(t, h.extractor.textCalls)
}

func TestEngine_DateIsNotLeadLiteral(t *testing.T) {
	h := newHarness(t)
	h.send("10/01/2027")
	require.Equal(t, domain.StateWaitDays, h.session(t).State)

	// A month-year reply is a date, not 2027 days.
	h.send("mar 2027")
	assert.Nil(t, h.session(t).Draft.LeadDays)
	assert.Equal(t, "2027-01-10", h.session(t).Draft.ExpiresOn)
	assert.Equal(t, domain.StateWaitDays, h.session(t).State)
}

func TestEngine_SingleMessageFillsEverything(t *testing.T) {
	h := newHarness(t)
	h.extractor.text = func(string) *domain.Fields {
		return &domain.Fields{Product: "Iogurte", ExpiresOn: "2026-12-20", LeadDays: domain.Days(2)}
	}

	reply := h.send("iogurte vence 20/12, me avisa 2 dias antes")
	assert.Equal(t, domain.StateConfirm, h.session(t).State)
	lines := strings.Split(reply, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "📅"))
	assert.True(t, strings.HasPrefix(lines[1], "⏳"))
	assert.True(t, strings.HasPrefix(lines[2], "🏷️"))
	assert.Contains(t, reply, "Confirma o lembrete?")
}

func TestEngine_ImageWinsOverCaption(t *testing.T) {
	h := newHarness(t)
	h.extractor.image = "2027-01-10"
	h.extractor.text = func(string) *domain.Fields {
		return &domain.Fields{ExpiresOn: "2027-05-05", Product: "Queijo"}
	}

	h.engine.Handle(context.Background(), photo("queijo 05/05/2027"))
	sess := h.session(t)
	assert.Equal(t, "2027-01-10", sess.Draft.ExpiresOn)
	assert.Equal(t, "Queijo", sess.Draft.Product)
	assert.Equal(t, domain.StateWaitDays, sess.State)
}

func TestEngine_LocalFallbacks(t *testing.T) {
	h := newHarness(t)

	reply := h.send("vence 10/01/2027")
	assert.Contains(t, reply, "📅 Validade: 10/01/2027")

	h.send("3")
	assert.Equal(t, domain.StateWaitProduct, h.session(t).State)

	h.send("  Leite   integral ")
	assert.Equal(t, "Leite integral", h.session(t).Draft.Product)
	assert.Equal(t, domain.StateConfirm, h.session(t).State)
}

func TestEngine_NothingUnderstood(t *testing.T) {
	h := newHarness(t)

	reply := h.send("oi")
	assert.Equal(t, domain.StateWaitImage, h.session(t).State)
	assert.NotContains(t, reply, msgNotUnderstood)

	reply = h.send("tudo bem?")
	assert.True(t, strings.HasPrefix(reply, msgNotUnderstood))
	assert.Equal(t, domain.StateWaitImage, h.session(t).State)
}

func TestEngine_Cancel(t *testing.T) {
	for _, state := range []string{"wait image", "wait days", "confirm"} {
		t.Run(state, func(t *testing.T) {
			h := newHarness(t)
			h.send("oi")
			if state != "wait image" {
				h.send("10/01/2027")
			}
			if state == "confirm" {
				h.send("7")
				h.send("Leite")
				require.Equal(t, domain.StateConfirm, h.session(t).State)
			}

			assert.Equal(t, msgCancelled, h.send("/cancelar"))
			_, ok := h.engine.Sessions().Get("console:ana")
			assert.False(t, ok)
			assert.Empty(t, h.committer.committed)
		})
	}
}

func TestEngine_CancelWithoutSession(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, msgNothingToStart, h.send("cancelar"))
	assert.Equal(t, 0, h.engine.Sessions().Len())
}

func toConfirm(t *testing.T, h *harness) {
	t.Helper()
	h.send("10/01/2027")
	h.send("7")
	h.send("Leite")
	require.Equal(t, domain.StateConfirm, h.session(t).State)
}

func TestEngine_Deny(t *testing.T) {
	h := newHarness(t)
	toConfirm(t, h)

	assert.Equal(t, msgDiscarded, h.send("não"))
	assert.Empty(t, h.committer.committed)
	assert.Equal(t, 0, h.engine.Sessions().Len())
}

func TestEngine_ConfirmOtherReplyRepeatsSummary(t *testing.T) {
	h := newHarness(t)
	toConfirm(t, h)

	reply := h.send("talvez")
	assert.True(t, strings.HasPrefix(reply, msgNotUnderstood))
	assert.Contains(t, reply, "Confirma o lembrete?")
	assert.Equal(t, domain.StateConfirm, h.session(t).State)
}

func TestEngine_CommitFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	toConfirm(t, h)
	id := h.session(t).ID

	h.committer.fail = errors.New("disk full")
	assert.Equal(t, msgCommitFailed, h.send("sim"))
	assert.Equal(t, domain.StateConfirm, h.session(t).State)

	h.committer.fail = nil
	h.send("sim")
	require.Len(t, h.committer.committed, 1)
	assert.Equal(t, id, h.committer.committed[0].ID)
	assert.Equal(t, 0, h.engine.Sessions().Len())
}

func TestEngine_PastNotifyDateWarns(t *testing.T) {
	h := newHarness(t)
	h.send("20/10/2026")
	reply := h.send("30")
	assert.NotContains(t, reply, "Atenção")
	reply = h.send("Pão")
	assert.Contains(t, reply, "Atenção")
}

func TestEngine_ConversationsAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.send("10/01/2027")

	other := text("7")
	other.ChatID = "bia"
	h.engine.Handle(context.Background(), other)

	assert.Equal(t, domain.StateWaitDays, h.session(t).State)
	bia, ok := h.engine.Sessions().Get("console:bia")
	require.True(t, ok)
	assert.Equal(t, domain.StateWaitImage, bia.State)
}

func TestEngine_EnqueuePreservesOrder(t *testing.T) {
	var mu sync.Mutex
	replies := map[string][]string{}
	h := newHarness(t, WithReply(func(_ context.Context, msg domain.InboundMessage, reply string) {
		mu.Lock()
		defer mu.Unlock()
		replies[msg.ChatID] = append(replies[msg.ChatID], reply)
	}))

	for _, chat := range []string{"ana", "bia"} {
		for _, body := range []string{"10/01/2027", "7", "Leite", "sim"} {
			msg := text(body)
			msg.ChatID = chat
			require.True(t, h.engine.Enqueue(msg))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Close(ctx))

	assert.Len(t, h.committer.committed, 2)
	for _, chat := range []string{"ana", "bia"} {
		require.Len(t, replies[chat], 4, chat)
		assert.Contains(t, replies[chat][0], "📅")
		assert.Contains(t, replies[chat][1], "⏳")
		assert.Contains(t, replies[chat][2], "Confirma")
		assert.Contains(t, replies[chat][3], "Leite")
	}

	assert.False(t, h.engine.Enqueue(text("oi")))
}
