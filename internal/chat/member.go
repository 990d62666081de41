package chat

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matheus3301/chatty/internal/backend"
)

// Member is a chat participant, keyed by canonical address.
type Member struct {
	Address string
	Name    string
	Role    backend.Role
	// Avatar is an opaque reference the backend resolves, such as a URL.
	Avatar string
	Typing bool
}

func (m Member) displayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Address
}

// compareMembers orders owners first, then moderators, then everyone else,
// each group by display name.
func compareMembers(a, b *Member) int {
	if c := cmp.Compare(b.Role, a.Role); c != 0 {
		return c
	}
	return cmp.Compare(strings.ToLower(a.displayName()), strings.ToLower(b.displayName()))
}

// AddMembers adds or updates members by canonical address and keeps them
// sorted.
func (c *Chat) AddMembers(members ...Member) {
	changed := false
	for _, m := range members {
		m.Address = c.canonical(m.Address)
		if m.Address == "" {
			continue
		}
		if existing := c.findMember(m.Address); existing != nil {
			if existing.Name != m.Name || existing.Role != m.Role || existing.Avatar != m.Avatar {
				existing.Name, existing.Role, existing.Avatar = m.Name, m.Role, m.Avatar
				changed = true
			}
			continue
		}
		cp := m
		c.members = append(c.members, &cp)
		changed = true
	}
	if changed {
		slices.SortStableFunc(c.members, compareMembers)
		c.changed()
	}
}

// RemoveMember drops the member with address and reports whether one existed.
func (c *Chat) RemoveMember(address string) bool {
	address = c.canonical(address)
	i := slices.IndexFunc(c.members, func(m *Member) bool { return m.Address == address })
	if i < 0 {
		return false
	}
	c.members = slices.Delete(c.members, i, i+1)
	c.changed()
	return true
}

// FindMember returns a copy of the member with address.
func (c *Chat) FindMember(address string) (Member, bool) {
	if m := c.findMember(address); m != nil {
		return *m, true
	}
	return Member{}, false
}

func (c *Chat) findMember(address string) *Member {
	address = c.canonical(address)
	for _, m := range c.members {
		if m.Address == address {
			return m
		}
	}
	return nil
}

// Members returns the participants in display order.
func (c *Chat) Members() []Member {
	out := make([]Member, len(c.members))
	for i, m := range c.members {
		out[i] = *m
	}
	return out
}

// SetMemberTyping records a participant's typing state.
func (c *Chat) SetMemberTyping(address string, typing bool) {
	m := c.findMember(address)
	if m == nil || m.Typing == typing {
		return
	}
	m.Typing = typing
	c.changed()
}

func (c *Chat) memberAddresses() []string {
	out := make([]string, len(c.members))
	for i, m := range c.members {
		out[i] = m.Address
	}
	return out
}

// canonical returns the form members are keyed by.
func (c *Chat) canonical(addr string) string {
	addr = strings.TrimSpace(addr)
	if c.matcher == nil || addr == "" {
		return addr
	}
	if k := c.matcher.Canonical(c.protocol, addr); k != "" {
		return k
	}
	return addr
}
