package account

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/backend/backendtest"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/chat"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/loop"
	"github.com/matheus3301/chatty/internal/phone"
	"github.com/matheus3301/chatty/internal/status"
)

type memStore struct {
	mu        sync.Mutex
	chats     map[string]chat.Record
	messages  map[string]*chat.Message
	history   map[string][]*chat.Message // pages served by MessagesBefore, by chat key
	pageSizes []int
}

func newMemStore() *memStore {
	return &memStore{
		chats:    make(map[string]chat.Record),
		messages: make(map[string]*chat.Message),
		history:  make(map[string][]*chat.Message),
	}
}

func (s *memStore) MessagesBefore(_ context.Context, _, key string, _ chat.Cursor, limit int) ([]*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSizes = append(s.pageSizes, limit)
	msgs := s.history[key]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

func (s *memStore) requestedPageSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pageSizes)
}

func (s *memStore) SaveMessage(_ context.Context, _, _ string, m *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Saves race each other; keep the most advanced status like the real store.
	if prev, ok := s.messages[m.UID]; ok && prev.Status() > m.Status() {
		return nil
	}
	s.messages[m.UID] = m
	return nil
}

func (s *memStore) ListChats(_ context.Context, account string) ([]chat.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Record
	for _, r := range s.chats {
		if r.Account == account {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) SaveChat(_ context.Context, r chat.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[r.Key] = r
	return nil
}

func (s *memStore) DeleteChat(_ context.Context, _, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, key)
	return nil
}

func (s *memStore) savedStatus(uid string) (chat.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[uid]
	if !ok {
		return chat.StatusUnknown, false
	}
	return m.Status(), true
}

func (s *memStore) hasChat(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[key]
	return ok
}

type memCredentials struct {
	mu        sync.Mutex
	passwords map[string]string
}

func (c *memCredentials) Password(_ context.Context, account string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passwords[account], nil
}

func (c *memCredentials) SetPassword(_ context.Context, account, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passwords[account] = password
	return nil
}

type scriptedPrompter struct {
	password string
	err      error
}

func (p scriptedPrompter) RequestPassword(context.Context, string, string) (string, error) {
	return p.password, p.err
}

type fixture struct {
	loop    *loop.Loop
	bus     *bus.Bus
	session *backendtest.Session
	store   *memStore
	creds   *memCredentials
	matcher *identity.Matcher
	account *Account
}

func newFixture(t *testing.T, protocol backend.Protocol, mutate func(*Options)) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{
		loop:    loop.New(nil),
		bus:     bus.New(),
		session: &backendtest.Session{Proto: protocol},
		store:   newMemStore(),
		creds:   &memCredentials{passwords: map[string]string{"acct": "secret"}},
		matcher: identity.NewMatcher(phone.NewNormalizer(0), "US"),
	}
	go f.loop.Run(ctx)

	opts := Options{
		ID:          "acct",
		Protocol:    protocol,
		Enabled:     true,
		Session:     f.session,
		Store:       f.store,
		Credentials: f.creds,
		Matcher:     f.matcher,
		Loop:        f.loop,
		Bus:         f.bus,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.account = New(opts)
	return f
}

func (f *fixture) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Do(context.Background(), fn))
}

func (f *fixture) waitStatus(t *testing.T, want status.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		var got status.State
		_ = f.loop.Do(context.Background(), func() { got = f.account.Status() })
		return got == want
	}, time.Second, 5*time.Millisecond, "status never became %s", want)
}

func (f *fixture) handle(t *testing.T, evt backend.Event) {
	t.Helper()
	f.do(t, func() { f.account.HandleEvent(context.Background(), evt) })
}

func (f *fixture) chatCount(t *testing.T) int {
	t.Helper()
	var n int
	f.do(t, func() { n = len(f.account.Chats()) })
	return n
}
