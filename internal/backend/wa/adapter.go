// Package wa implements backend.Session on top of whatsmeow.
package wa

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/errdefs"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client of one account.
type Adapter struct {
	account   string
	client    *whatsmeow.Client
	container *sqlstore.Container
	handler   *EventHandler
	logger    *zap.Logger
}

var _ backend.Session = (*Adapter)(nil)

// NewAdapter opens the whatsmeow device store at dbPath and registers the
// event handler that publishes backend events for account.
func NewAdapter(ctx context.Context, account, dbPath string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("chatty", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	a := &Adapter{
		account:   account,
		client:    whatsmeow.NewClient(deviceStore, nil),
		container: container,
		logger:    logger.With(zap.String("account", account)),
	}
	a.handler = NewEventHandler(account, b, a, a.logger)
	a.client.AddEventHandler(a.handler.Handle)
	return a, nil
}

// IsLoggedIn returns whether the device has been paired.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// PhoneNumber returns the paired phone number, or "".
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

func (a *Adapter) Protocol() backend.Protocol { return backend.ProtocolWhatsApp }

// Connect opens the connection. WhatsApp authenticates with the paired
// device keys, so secret is ignored.
func (a *Adapter) Connect(ctx context.Context, _ string) error {
	if !a.IsLoggedIn() {
		return fmt.Errorf("whatsapp account %s is not paired: %w", a.account, errdefs.ErrNotConnected)
	}
	a.logger.Info("connecting to WhatsApp")
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w: %w", errdefs.ErrBackendFailure, err)
	}
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
	a.handler.roster.reset()
	return nil
}

// Logout unpairs the device.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

func (a *Adapter) Capabilities(conv *backend.Conversation) backend.Capability {
	return backend.CapDeliveryReports
}

// Send delivers a text message. The server message ID doubles as the
// delivery report reference.
func (a *Adapter) Send(ctx context.Context, conv *backend.Conversation, msg backend.Outgoing) (backend.Receipt, error) {
	to, err := types.ParseJID(conv.ID)
	if err != nil {
		return backend.Receipt{}, fmt.Errorf("parse JID %q: %w", conv.ID, errdefs.ErrInvalidArgument)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(msg.Body),
	})
	if err != nil {
		return backend.Receipt{}, fmt.Errorf("send message: %w", err)
	}
	r := backend.Receipt{ID: resp.ID}
	if msg.RequestReport {
		r.Reference = resp.ID
	}
	return r, nil
}

func (a *Adapter) SetTyping(ctx context.Context, conv *backend.Conversation, typing bool) error {
	return fmt.Errorf("typing notifications: %w", errdefs.ErrNotSupported)
}

func (a *Adapter) Join(ctx context.Context, room *backend.Room) (*backend.Conversation, error) {
	return nil, fmt.Errorf("join group: %w", errdefs.ErrNotSupported)
}

func (a *Adapter) Leave(ctx context.Context, conv *backend.Conversation) error {
	return fmt.Errorf("leave group: %w", errdefs.ErrNotSupported)
}

func (a *Adapter) Invite(ctx context.Context, conv *backend.Conversation, address, message string) error {
	return fmt.Errorf("invite: %w", errdefs.ErrNotSupported)
}

func (a *Adapter) SetTopic(ctx context.Context, conv *backend.Conversation, topic string) error {
	return fmt.Errorf("set topic: %w", errdefs.ErrNotSupported)
}

// Members returns the peer of a direct chat, or the group members seen so far.
func (a *Adapter) Members(ctx context.Context, conv *backend.Conversation) ([]backend.Member, error) {
	return a.handler.roster.membersOf(conv), nil
}

// Encryption reports Unsupported: WhatsApp encrypts every chat and offers no
// per-chat switch.
func (a *Adapter) Encryption(ctx context.Context, conv *backend.Conversation) (backend.Encryption, error) {
	return backend.EncryptionUnsupported, nil
}

func (a *Adapter) SetEncryption(ctx context.Context, conv *backend.Conversation, enable bool) (backend.Encryption, error) {
	return backend.EncryptionUnsupported, fmt.Errorf("set encryption: %w", errdefs.ErrNotSupported)
}

// Contacts returns the device store's contacts, sorted by address.
func (a *Adapter) Contacts(ctx context.Context) []*backend.Contact {
	all, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	contacts := make([]*backend.Contact, 0, len(all))
	for jid, info := range all {
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		contacts = append(contacts, &backend.Contact{
			Account: a.account,
			Address: jid.ToNonAD().String(),
			Name:    name,
		})
	}
	slices.SortFunc(contacts, func(x, y *backend.Contact) int {
		return strings.Compare(x.Address, y.Address)
	})
	return contacts
}

// ResolveLID resolves a LID JID to its phone number JID using the device
// store mapping. Other JIDs, and LIDs without a mapping, are returned as is.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
