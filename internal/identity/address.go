package identity

import (
	"regexp"
	"strings"

	"github.com/matheus3301/chatty/internal/backend"
)

var (
	matrixUser  = regexp.MustCompile(`^@[a-z0-9._=/-]+:[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*(?::[0-9]{1,5})?$`)
	bareAddress = regexp.MustCompile(`^[^@\s/:]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)+$`)
)

// DetectProtocol reports which of the allowed protocols addr is a
// well-formed user address for. It returns ProtocolNone when addr fits none.
func (m *Matcher) DetectProtocol(addr string, allowed backend.Protocol) backend.Protocol {
	addr = strings.TrimSpace(addr)
	switch {
	case addr == "":
		return backend.ProtocolNone
	case strings.HasPrefix(addr, "@"):
		if matrixUser.MatchString(addr) {
			return allowed & backend.ProtocolMatrix
		}
		return backend.ProtocolNone
	case strings.Contains(addr, "@"):
		if bareAddress.MatchString(addr) {
			return allowed & (backend.ProtocolXMPP | backend.ProtocolEmail)
		}
		return backend.ProtocolNone
	}

	n := m.normalizer.Normalize(addr, "")
	if !n.HasCanonical() {
		return backend.ProtocolNone
	}
	found := backend.ProtocolSMS
	if strings.HasPrefix(n.Cleaned, "+") && n.Valid {
		found |= backend.ProtocolTelegram
	}
	return allowed & found
}

// ValidUsername reports whether addr is acceptable as an account username
// for protocol p.
func (m *Matcher) ValidUsername(addr string, p backend.Protocol) bool {
	return m.DetectProtocol(addr, p) != backend.ProtocolNone
}

// StripResource removes an XMPP resource ("user@host/resource").
func StripResource(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}
