// Package identity decides whether two sets of backend handles refer to the
// same conversation, and derives the stable key chats are stored under.
package identity

import (
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/phone"
)

// Handles is everything known about one side of a comparison. Any field may
// be empty.
type Handles struct {
	Account      string
	Protocol     backend.Protocol
	Conversation *backend.Conversation
	Contact      *backend.Contact
	Room         *backend.Room
	// Members are participant addresses as reported, not yet canonical.
	Members []string
	// RoomID marks a room chat whose room and conversation handles may
	// already be gone.
	RoomID string
}

// Rule names which check made two handle sets match.
type Rule int

const (
	RuleNone Rule = iota
	RuleSession
	RuleReference
	RuleAddress
)

func (r Rule) String() string {
	switch r {
	case RuleSession:
		return "session"
	case RuleReference:
		return "reference"
	case RuleAddress:
		return "address"
	default:
		return "none"
	}
}

// Matcher applies the identity rules. Telephony addresses are canonicalized
// against the current default region.
type Matcher struct {
	normalizer *phone.Normalizer

	mu     sync.RWMutex
	region string
}

func NewMatcher(n *phone.Normalizer, region string) *Matcher {
	return &Matcher{normalizer: n, region: strings.ToUpper(region)}
}

// Region returns the default region used for national numbers.
func (m *Matcher) Region() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.region
}

// SetRegion replaces the default region, e.g. once the SIM is known.
func (m *Matcher) SetRegion(region string) {
	m.mu.Lock()
	m.region = strings.ToUpper(region)
	m.mu.Unlock()
}

// Same reports whether a and b denote the same conversation.
func (m *Matcher) Same(a, b Handles) bool {
	return m.Match(a, b) != RuleNone
}

// Match evaluates the rules in priority order and reports the first that
// holds: a shared live session, then shared persistent references, then
// equal canonical participant sets. Rooms never match on participants; a
// room is the same room only through its handles or its ID, which callers
// use as the chat key.
func (m *Matcher) Match(a, b Handles) Rule {
	if a.Account != "" && b.Account != "" && a.Account != b.Account {
		return RuleNone
	}
	if a.Conversation != nil && a.Conversation == b.Conversation {
		return RuleSession
	}
	if sameReference(a, b) || sameReference(b, a) {
		return RuleReference
	}
	if a.isRoom() || b.isRoom() {
		return RuleNone
	}

	p := a.Protocol
	if p == backend.ProtocolNone {
		p = b.Protocol
	}
	ka, kb := m.Key(p, a.addresses()...), m.Key(p, b.addresses()...)
	if ka != "" && ka == kb {
		return RuleAddress
	}
	return RuleNone
}

// sameReference checks a's persistent references against b, including the
// roster entry or room b's live conversation was opened from.
func sameReference(a, b Handles) bool {
	if a.Contact != nil {
		if a.Contact == b.Contact {
			return true
		}
		if b.Conversation != nil && b.Conversation.Contact == a.Contact {
			return true
		}
	}
	if a.Room != nil {
		if a.Room == b.Room {
			return true
		}
		if b.Conversation != nil && b.Conversation.Room == a.Room {
			return true
		}
	}
	return false
}

func (h Handles) isRoom() bool {
	return h.Room != nil || h.RoomID != "" ||
		(h.Conversation != nil && h.Conversation.Type == backend.ConversationRoom)
}

func (h Handles) addresses() []string {
	if len(h.Members) > 0 {
		return h.Members
	}
	if h.Contact != nil {
		return []string{h.Contact.Address}
	}
	if h.Conversation != nil && h.Conversation.Type == backend.ConversationIM {
		return []string{h.Conversation.ID}
	}
	return nil
}

// Canonical returns the comparison form of one address under protocol p.
func (m *Matcher) Canonical(p backend.Protocol, addr string) string {
	addr = strings.TrimSpace(addr)
	switch {
	case p.Telephony():
		return m.normalizer.Normalize(addr, m.Region()).Canonical()
	case p == backend.ProtocolXMPP:
		return StripResource(addr)
	default:
		return addr
	}
}

// Key derives the stable chat key for a participant set: canonical forms,
// sorted, de-duplicated and joined with ",". Unparseable addresses fall back
// to their raw form.
func (m *Matcher) Key(p backend.Protocol, addrs ...string) string {
	keys := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		c := m.Canonical(p, addr)
		if c == "" {
			c = strings.TrimSpace(addr)
		}
		if c != "" {
			keys = append(keys, c)
		}
	}
	slices.Sort(keys)
	return strings.Join(slices.Compact(keys), ",")
}

// KeyFromList is Key for a comma separated recipient list.
func (m *Matcher) KeyFromList(p backend.Protocol, list string) string {
	return m.Key(p, strings.Split(list, ",")...)
}
