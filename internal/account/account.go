// Package account owns the chats of one protocol account, reconciles backend
// events onto them, and drives the account's connectivity state.
//
// Like chats, accounts belong to the control loop: call every method on the
// loop goroutine.
package account

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/chat"
	"github.com/matheus3301/chatty/internal/errdefs"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/loop"
	"github.com/matheus3301/chatty/internal/status"
)

// Credentials stores the secret an account connects with.
type Credentials interface {
	Password(ctx context.Context, account string) (string, error)
	SetPassword(ctx context.Context, account, password string) error
}

// Prompter asks the user for a new password after an authentication
// failure. An empty password or an error means the user declined.
type Prompter interface {
	RequestPassword(ctx context.Context, account, reason string) (string, error)
}

// Options configures a new Account.
type Options struct {
	ID       string
	Protocol backend.Protocol
	Enabled  bool

	Session     backend.Session
	Store       chat.Store
	Credentials Credentials
	Prompter    Prompter
	Matcher     *identity.Matcher

	Loop   *loop.Loop
	Bus    *bus.Bus
	Logger *zap.Logger

	SupportsEncryption bool
	DeliveryReports    bool
	HistoryPageSize    int
}

// Account is one configured protocol account and its chats.
type Account struct {
	id       string
	protocol backend.Protocol
	enabled  bool

	session  backend.Session
	store    chat.Store
	creds    Credentials
	prompter Prompter
	matcher  *identity.Matcher
	machine  *status.Machine

	chats   []*chat.Chat
	pending map[string]*chat.Message // outbound messages awaiting delivery reports, by reference

	supportsEncryption bool
	deliveryReports    bool
	historyPageSize    int

	loop   *loop.Loop
	bus    *bus.Bus
	logger *zap.Logger
}

func New(opts Options) *Account {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Account{
		id:                 opts.ID,
		protocol:           opts.Protocol,
		enabled:            opts.Enabled,
		session:            opts.Session,
		store:              opts.Store,
		creds:              opts.Credentials,
		prompter:           opts.Prompter,
		matcher:            opts.Matcher,
		machine:            status.NewMachine(opts.ID, opts.Bus),
		pending:            make(map[string]*chat.Message),
		supportsEncryption: opts.SupportsEncryption,
		deliveryReports:    opts.DeliveryReports,
		historyPageSize:    cmp.Or(opts.HistoryPageSize, 30),
		loop:               opts.Loop,
		bus:                opts.Bus,
		logger:             logger.With(zap.String("account", opts.ID)),
	}
}

func (a *Account) ID() string                 { return a.id }
func (a *Account) Protocol() backend.Protocol { return a.protocol }
func (a *Account) Status() status.State       { return a.machine.Current() }
func (a *Account) Enabled() bool              { return a.enabled }

// Chats returns the account's chats, most recently active first.
func (a *Account) Chats() []*chat.Chat {
	out := slices.Clone(a.chats)
	slices.SortStableFunc(out, func(x, y *chat.Chat) int {
		return y.LastMessageTime().Compare(x.LastMessageTime())
	})
	return out
}

// FindChat returns the chat stored under key, or nil. For telephony
// accounts key may be a comma separated recipient list in any form.
func (a *Account) FindChat(key string) *chat.Chat {
	if a.protocol.Telephony() {
		key = a.matcher.KeyFromList(a.protocol, key)
	}
	for _, c := range a.chats {
		if c.Key() == key {
			return c
		}
	}
	return nil
}

// Load restores persisted chats and starts loading the newest history page
// of each. done, if set, runs on the loop once the chats are restored.
func (a *Account) Load(ctx context.Context, done func(error)) {
	if a.store == nil {
		if done != nil {
			done(nil)
		}
		return
	}
	loop.Go(a.loop, ctx, func(ctx context.Context) ([]chat.Record, error) {
		return a.store.ListChats(ctx, a.id)
	}, func(records []chat.Record, err error) {
		if err == nil && ctx.Err() == nil {
			for _, r := range records {
				if a.findByKey(r.Key) != nil {
					continue
				}
				c := a.newChat(r.Key, r.Name, r.Kind)
				c.Restore(r)
				a.chats = append(a.chats, c)
				// The newest page lets retransmitted messages be recognised.
				a.LoadHistory(ctx, c)
			}
			a.logger.Info("chats loaded", zap.Int("count", len(records)))
		}
		if err != nil {
			err = fmt.Errorf("load chats for %s: %w", a.id, err)
		}
		if done != nil {
			done(err)
		}
	})
}

// StartChat returns the chat for a comma separated recipient list, creating
// it if needed. A single recipient yields a direct chat; several yield a
// group.
func (a *Account) StartChat(recipients string) (*chat.Chat, error) {
	key := a.matcher.KeyFromList(a.protocol, recipients)
	if key == "" {
		return nil, fmt.Errorf("start chat on %s: no recipients: %w", a.id, errdefs.ErrInvalidArgument)
	}
	if c := a.findByKey(key); c != nil {
		return c, nil
	}

	members := splitKey(key)
	kind := chat.KindOneToOne
	if len(members) > 1 {
		kind = chat.KindGroup
	}
	c := a.addChat(key, "", kind)
	for _, m := range members {
		c.AddMembers(chat.Member{Address: m})
	}
	a.saveChat(c)
	return c, nil
}

// LoadHistory loads the next page of older messages into c, sized by the
// account's history page size.
func (a *Account) LoadHistory(ctx context.Context, c *chat.Chat) {
	c.LoadHistory(ctx, a.historyPageSize)
}

// DeleteChat removes c from the account and from storage.
func (a *Account) DeleteChat(ctx context.Context, c *chat.Chat) {
	i := slices.Index(a.chats, c)
	if i < 0 {
		return
	}
	a.chats = slices.Delete(a.chats, i, i+1)
	for ref, m := range a.pending {
		if c.FindMessageByUID(m.UID) != nil {
			delete(a.pending, ref)
		}
	}
	a.bus.Emit(bus.KindChatRemoved, c.Ref())

	if a.store == nil {
		return
	}
	key := c.Key()
	loop.Go(a.loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.store.DeleteChat(ctx, a.id, key)
	}, func(_ struct{}, err error) {
		if err != nil {
			a.logger.Error("failed to delete chat", zap.Error(err), zap.String("chat", key))
		}
	})
}

// Send creates an outbound message in c and sends it. On telephony
// accounts with delivery reports enabled the message is tracked until its
// report arrives.
func (a *Account) Send(ctx context.Context, c *chat.Chat, body string, done func(*chat.Message, error)) error {
	msg := chat.NewMessage(body)
	var opts []chat.SendOption
	if a.deliveryReports {
		opts = append(opts, chat.WithDeliveryReport())
	}
	return c.SendMessage(ctx, msg, func(err error) {
		if err == nil && msg.Reference != "" && a.deliveryReports {
			a.pending[msg.Reference] = msg
		}
		a.saveChat(c)
		if done != nil {
			done(msg, err)
		}
	}, opts...)
}

func (a *Account) findByKey(key string) *chat.Chat {
	for _, c := range a.chats {
		if c.Key() == key {
			return c
		}
	}
	return nil
}

func (a *Account) newChat(key, name string, kind chat.Kind) *chat.Chat {
	return chat.New(chat.Options{
		Account:            a.id,
		Protocol:           a.protocol,
		Key:                key,
		Name:               name,
		Kind:               kind,
		Loop:               a.loop,
		Bus:                a.bus,
		Session:            a.session,
		History:            a.store,
		Logger:             a.logger,
		Matcher:            a.matcher,
		SupportsEncryption: a.supportsEncryption,
	})
}

func (a *Account) addChat(key, name string, kind chat.Kind) *chat.Chat {
	c := a.newChat(key, name, kind)
	a.chats = append(a.chats, c)
	a.bus.Emit(bus.KindChatAdded, c.Ref())
	return c
}

func (a *Account) saveChat(c *chat.Chat) {
	if a.store == nil {
		return
	}
	rec := c.Record()
	loop.Go(a.loop, context.Background(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.store.SaveChat(ctx, rec)
	}, func(_ struct{}, err error) {
		if err != nil {
			a.logger.Error("failed to save chat", zap.Error(err), zap.String("chat", rec.Key))
		}
	})
}

func splitKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ",")
}
