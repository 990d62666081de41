package wa

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/chatty/internal/backend"
)

// Content types reported for WhatsApp message kinds.
const (
	ContentText     = "text/plain"
	ContentImage    = "image/*"
	ContentVideo    = "video/*"
	ContentAudio    = "audio/*"
	ContentDocument = "application/octet-stream"
	ContentSticker  = "image/webp"
	ContentContact  = "text/vcard"
	ContentLocation = "application/geo+json"
	ContentUnknown  = ""
)

// NormalizeJID strips the device suffix from a JID string so that every
// device of a user maps to the same address. Unparseable input is returned
// unchanged.
func NormalizeJID(s string) string {
	if s == "" {
		return ""
	}
	jid, err := types.ParseJID(s)
	if err != nil {
		return s
	}
	return jid.ToNonAD().String()
}

// ParseLiveMessage converts a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) backend.Incoming {
	return backend.Incoming{
		ID:          evt.Info.ID,
		Sender:      evt.Info.Sender.ToNonAD().String(),
		SenderName:  evt.Info.PushName,
		Body:        extractTextBody(evt.Message),
		ContentType: detectContentType(evt.Message),
		Time:        evt.Info.Timestamp,
		FromMe:      evt.Info.IsFromMe,
	}
}

// ParseHistoryMessage converts one message replayed by a history sync.
// chatJID is the conversation the message belongs to; in direct chats the
// key carries no participant and the peer is the sender.
func ParseHistoryMessage(chatJID string, wmsg *waWeb.WebMessageInfo) (backend.Incoming, bool) {
	if wmsg == nil || wmsg.GetMessage() == nil {
		return backend.Incoming{}, false
	}
	key := wmsg.GetKey()
	sender := NormalizeJID(key.GetParticipant())
	if sender == "" && !key.GetFromMe() {
		sender = chatJID
	}
	return backend.Incoming{
		ID:          key.GetID(),
		Sender:      sender,
		SenderName:  wmsg.GetPushName(),
		Body:        extractTextBody(wmsg.GetMessage()),
		ContentType: detectContentType(wmsg.GetMessage()),
		Time:        time.Unix(int64(wmsg.GetMessageTimestamp()), 0),
		FromMe:      key.GetFromMe(),
	}, true
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	return ""
}

func detectContentType(msg *waE2E.Message) string {
	if msg == nil {
		return ContentUnknown
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return ContentText
	case msg.GetImageMessage() != nil:
		return ContentImage
	case msg.GetVideoMessage() != nil:
		return ContentVideo
	case msg.GetAudioMessage() != nil:
		return ContentAudio
	case msg.GetDocumentMessage() != nil:
		return ContentDocument
	case msg.GetStickerMessage() != nil:
		return ContentSticker
	case msg.GetContactMessage() != nil:
		return ContentContact
	case msg.GetLocationMessage() != nil:
		return ContentLocation
	default:
		return ContentUnknown
	}
}
