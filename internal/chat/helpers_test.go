package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/backend/backendtest"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/loop"
)

type fakeHistory struct {
	mu      sync.Mutex
	pages   []*Message
	saved   []*Message
	calls   int
	release chan struct{}
}

func (h *fakeHistory) MessagesBefore(ctx context.Context, _, _ string, cur Cursor, limit int) ([]*Message, error) {
	h.mu.Lock()
	h.calls++
	release := h.release
	h.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*Message
	for _, m := range h.pages {
		if cur.Before.IsZero() || m.Time.Before(cur.Before) {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *fakeHistory) SaveMessage(_ context.Context, _, _ string, msg *Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, msg)
	return nil
}

func (h *fakeHistory) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *fakeHistory) savedStatuses(uid string) []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Status
	for _, m := range h.saved {
		if m.UID == uid {
			out = append(out, m.Status())
		}
	}
	return out
}

type fixture struct {
	loop    *loop.Loop
	bus     *bus.Bus
	session *backendtest.Session
	history *fakeHistory
	conv    *backend.Conversation
	chat    *Chat
}

func newFixture(t *testing.T, kind Kind) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{
		loop:    loop.New(nil),
		bus:     bus.New(),
		session: &backendtest.Session{Proto: backend.ProtocolXMPP},
		history: &fakeHistory{},
	}
	go f.loop.Run(ctx)

	convType := backend.ConversationIM
	if kind != KindOneToOne {
		convType = backend.ConversationRoom
	}
	f.conv = &backend.Conversation{ID: "peer@example.com", Account: "acct", Type: convType}
	f.chat = New(Options{
		Account:            "acct",
		Protocol:           backend.ProtocolXMPP,
		Key:                "peer@example.com",
		Kind:               kind,
		Loop:               f.loop,
		Bus:                f.bus,
		Session:            f.session,
		History:            f.history,
		SupportsEncryption: true,
	})
	return f
}

func (f *fixture) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Do(context.Background(), fn))
}

func (f *fixture) attach(t *testing.T) {
	t.Helper()
	f.do(t, func() { f.chat.AttachConversation(f.conv) })
}

// statusEvents collects message status notifications until want arrive.
func statusEvents(t *testing.T, ch <-chan bus.Event, want int) []Status {
	t.Helper()
	var got []Status
	timeout := time.After(time.Second)
	for len(got) < want {
		select {
		case evt := <-ch:
			got = append(got, evt.Payload.(MessageStatusChange).Status)
		case <-timeout:
			t.Fatalf("got %d status events, want %d", len(got), want)
		}
	}
	return got
}

func messageAt(id string, minute int) *Message {
	return NewIncoming(id, "peer@example.com", "", "m"+id, time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC))
}

func messageBodies(msgs []*Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}
