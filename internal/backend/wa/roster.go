package wa

import (
	"slices"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow/types"

	"github.com/matheus3301/chatty/internal/backend"
)

// roster owns the live conversations of one account, keyed by chat JID.
// Chats only hold weak references, so dropping an entry here is what ends
// a conversation.
type roster struct {
	account string

	mu      sync.Mutex
	convs   map[string]*backend.Conversation
	members map[string][]backend.Member
}

func newRoster(account string) *roster {
	return &roster{
		account: account,
		convs:   make(map[string]*backend.Conversation),
		members: make(map[string][]backend.Member),
	}
}

// open returns the conversation for jid, creating it on first sight.
func (r *roster) open(jid types.JID, title string) (conv *backend.Conversation, created bool) {
	id := jid.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.convs[id]; ok {
		if conv.Title == "" && title != "" {
			conv.Title = title
		}
		return conv, false
	}
	conv = &backend.Conversation{ID: id, Account: r.account, Title: title}
	if jid.Server == types.GroupServer {
		conv.Type = backend.ConversationRoom
		conv.Room = &backend.Room{Account: r.account, ID: id, Name: title}
	}
	r.convs[id] = conv
	return conv, true
}

func (r *roster) lookup(id string) *backend.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.convs[id]
}

// see records m as a member of conv and reports whether it was new.
func (r *roster) see(conv *backend.Conversation, m backend.Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	known := r.members[conv.ID]
	if slices.ContainsFunc(known, func(k backend.Member) bool { return k.Address == m.Address }) {
		return false
	}
	r.members[conv.ID] = append(known, m)
	return true
}

func (r *roster) membersOf(conv *backend.Conversation) []backend.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members[conv.ID])
}

// reset drops every conversation and returns what was open.
func (r *roster) reset() []*backend.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*backend.Conversation, 0, len(r.convs))
	for _, c := range r.convs {
		out = append(out, c)
	}
	clear(r.convs)
	clear(r.members)
	slices.SortFunc(out, func(a, b *backend.Conversation) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
