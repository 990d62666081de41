package backend

import "strings"

// Protocol identifies a messaging protocol family. Values are bit flags so
// that address detection can report more than one candidate.
type Protocol uint

const (
	ProtocolSMS Protocol = 1 << iota
	ProtocolMMS
	ProtocolXMPP
	ProtocolMatrix
	ProtocolEmail
	ProtocolTelegram
	ProtocolWhatsApp

	ProtocolNone Protocol = 0
	ProtocolAny  Protocol = ProtocolSMS | ProtocolMMS | ProtocolXMPP | ProtocolMatrix |
		ProtocolEmail | ProtocolTelegram | ProtocolWhatsApp
)

var protocolNames = []struct {
	p    Protocol
	name string
}{
	{ProtocolSMS, "sms"},
	{ProtocolMMS, "mms"},
	{ProtocolXMPP, "xmpp"},
	{ProtocolMatrix, "matrix"},
	{ProtocolEmail, "email"},
	{ProtocolTelegram, "telegram"},
	{ProtocolWhatsApp, "whatsapp"},
}

// Telephony reports whether addresses of p are phone numbers that must be
// canonicalized before comparison.
func (p Protocol) Telephony() bool {
	return p&(ProtocolSMS|ProtocolMMS) != 0
}

// Has reports whether every bit of q is set in p.
func (p Protocol) Has(q Protocol) bool {
	return q != 0 && p&q == q
}

func (p Protocol) String() string {
	if p == ProtocolNone {
		return "none"
	}
	var names []string
	for _, pn := range protocolNames {
		if p&pn.p != 0 {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseProtocol maps a single protocol name to its flag.
func ParseProtocol(s string) (Protocol, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, pn := range protocolNames {
		if pn.name == s {
			return pn.p, true
		}
	}
	return ProtocolNone, false
}
