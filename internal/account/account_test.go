package account

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/chat"
	"github.com/matheus3301/chatty/internal/errdefs"
	"github.com/matheus3301/chatty/internal/status"
)

func TestStartChatSingleRecipient(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)

	var first, second *chat.Chat
	var err1, err2 error
	f.do(t, func() {
		first, err1 = f.account.StartChat("213-321-9876")
		second, err2 = f.account.StartChat("+1 (213) 321-9876")
	})

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Same(t, first, second)
	assert.Equal(t, "+12133219876", first.Key())
	assert.Equal(t, chat.KindOneToOne, first.Kind())
	assert.Equal(t, 1, f.chatCount(t))
}

func TestStartChatGroup(t *testing.T) {
	f := newFixture(t, backend.ProtocolMMS, nil)

	var c, found *chat.Chat
	var err error
	var members int
	f.do(t, func() {
		c, err = f.account.StartChat("+919633123456,213-321-9876")
		found = f.account.FindChat("2133219876, +91 9633 123 456")
		members = len(c.Members())
	})

	require.NoError(t, err)
	assert.Equal(t, chat.KindGroup, c.Kind())
	assert.Equal(t, "+12133219876,+919633123456", c.Key())
	assert.Same(t, c, found)
	assert.Equal(t, 2, members)
	assert.Eventually(t, func() bool { return f.store.hasChat(c.Key()) }, time.Second, 5*time.Millisecond)
}

func TestStartChatWithoutRecipients(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)

	var err error
	f.do(t, func() { _, err = f.account.StartChat(" , ") })
	assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
}

func TestConnectSuccess(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, nil)

	f.do(t, func() { f.account.Connect(context.Background()) })
	f.waitStatus(t, status.Connected)

	assert.Equal(t, []string{"secret"}, f.session.Secrets())
}

func TestConnectWhileConnectingIsNoop(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, backend.ProtocolXMPP, nil)
	f.session.OnConnect = func(ctx context.Context, _ string) error {
		<-release
		return nil
	}

	f.do(t, func() {
		f.account.Connect(context.Background())
		f.account.Connect(context.Background())
	})
	require.Eventually(t, func() bool { return len(f.session.Secrets()) == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	f.waitStatus(t, status.Connected)

	f.do(t, func() { f.account.Connect(context.Background()) })
	assert.Len(t, f.session.Secrets(), 1)
}

func TestConnectFailureDisconnects(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, nil)
	f.session.ConnectErr = errors.New("refused")

	f.do(t, func() { f.account.Connect(context.Background()) })
	require.Eventually(t, func() bool { return len(f.session.Secrets()) == 1 }, time.Second, 5*time.Millisecond)
	f.waitStatus(t, status.Disconnected)
}

func TestDisabledAccountDoesNotConnect(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, func(o *Options) { o.Enabled = false })

	f.do(t, func() { f.account.Connect(context.Background()) })

	var st status.State
	f.do(t, func() { st = f.account.Status() })
	assert.Equal(t, status.Disconnected, st)
	assert.Empty(t, f.session.Secrets())
}

func TestDisconnectDetachesConversations(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, nil)
	conv := &backend.Conversation{ID: "bob@example.com", Account: "acct"}

	f.handle(t, backend.Connectivity{Account: "acct", State: backend.ConnConnected})
	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: conv, Members: []backend.Member{{Address: "bob@example.com"}}})

	var connected bool
	f.do(t, func() {
		f.account.Disconnect(context.Background())
		connected = f.account.FindChat("bob@example.com").Connected()
	})

	f.waitStatus(t, status.Disconnected)
	assert.False(t, connected)
	assert.Eventually(t, func() bool { return f.session.Disconnects() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAuthFailureReprompts(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, func(o *Options) {
		o.Prompter = scriptedPrompter{password: "new-secret"}
	})

	f.handle(t, backend.AuthFailed{Account: "acct", Reason: "not-authorized"})
	f.waitStatus(t, status.Connected)

	assert.Equal(t, []string{"new-secret"}, f.session.Secrets())
	pw, _ := f.creds.Password(context.Background(), "acct")
	assert.Equal(t, "new-secret", pw)
}

func TestAuthFailureCancelledDisables(t *testing.T) {
	tests := []struct {
		name     string
		prompter Prompter
	}{
		{"cancelled", scriptedPrompter{err: errdefs.ErrCancelled}},
		{"empty password", scriptedPrompter{}},
		{"no prompter", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, backend.ProtocolXMPP, func(o *Options) { o.Prompter = tt.prompter })
			events, unsub := f.bus.Subscribe(bus.KindAccountDisabled, 1)
			defer unsub()

			f.handle(t, backend.AuthFailed{Account: "acct", Reason: "not-authorized"})

			select {
			case <-events:
			case <-time.After(time.Second):
				t.Fatal("account never disabled")
			}
			var enabled bool
			var st status.State
			f.do(t, func() { enabled, st = f.account.Enabled(), f.account.Status() })
			assert.False(t, enabled)
			assert.Equal(t, status.Disconnected, st)
			assert.Empty(t, f.session.Secrets())
		})
	}
}

func TestIncomingMessagesReconcileByNumber(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.handle(t, backend.MessageReceived{Account: "acct", Message: backend.Incoming{ID: "1", Sender: "213-321-9876", Body: "hi", Time: at}})
	f.handle(t, backend.MessageReceived{Account: "acct", Message: backend.Incoming{ID: "2", Sender: "+12133219876", Body: "again", Time: at.Add(time.Minute)}})

	var chats int
	var count, unread int
	var key string
	f.do(t, func() {
		all := f.account.Chats()
		chats = len(all)
		key = all[0].Key()
		count = len(all[0].Messages())
		unread = all[0].UnreadCount()
	})
	assert.Equal(t, 1, chats)
	assert.Equal(t, "+12133219876", key)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, unread)
}

func TestDuplicateMessageIDIsDropped(t *testing.T) {
	f := newFixture(t, backend.ProtocolMMS, nil)
	in := backend.Incoming{ID: "mms-7", Sender: "2133219876", Body: "pic", Time: time.Now()}
	members := []backend.Member{{Address: "2133219876"}, {Address: "+919633123456"}}

	f.handle(t, backend.MessageReceived{Account: "acct", Members: members, Message: in})
	f.handle(t, backend.MessageReceived{Account: "acct", Members: members, Message: in})

	var c *chat.Chat
	var count int
	var kind chat.Kind
	f.do(t, func() {
		c = f.account.FindChat("+919633123456,2133219876")
		if c != nil {
			count, kind = len(c.Messages()), c.Kind()
		}
	})
	require.NotNil(t, c)
	assert.Equal(t, 1, count)
	assert.Equal(t, chat.KindGroup, kind)
}

func TestFocusedChatStaysRead(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)

	var c *chat.Chat
	f.do(t, func() {
		c, _ = f.account.StartChat("2133219876")
		c.SetFocused(true)
	})
	f.handle(t, backend.MessageReceived{Account: "acct", Message: backend.Incoming{ID: "1", Sender: "2133219876", Body: "hi", Time: time.Now()}})

	var unread int
	f.do(t, func() { unread = c.UnreadCount() })
	assert.Zero(t, unread)
}

func TestConversationMatchesContactChat(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, nil)
	contact := &backend.Contact{Account: "acct", Address: "alice@example.com", Name: "Alice"}
	conv := &backend.Conversation{ID: "alice@example.com/phone", Account: "acct", Contact: contact}

	f.handle(t, backend.ContactAdded{Account: "acct", Contact: contact})
	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: conv})
	f.handle(t, backend.MessageReceived{Account: "acct", Conversation: conv, Message: backend.Incoming{ID: "x", Sender: "alice@example.com/phone", Body: "yo", Time: time.Now()}})

	var chats int
	var name string
	var messages int
	var attached bool
	f.do(t, func() {
		all := f.account.Chats()
		chats = len(all)
		name = all[0].Name()
		messages = len(all[0].Messages())
		attached = all[0].Conversation() == conv
	})
	assert.Equal(t, 1, chats)
	assert.Equal(t, "Alice", name)
	assert.Equal(t, 1, messages)
	assert.True(t, attached)
}

func TestRoomsWithoutMembersStayDistinct(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, nil)

	f.handle(t, backend.RoomAdded{Account: "acct", Room: &backend.Room{ID: "dev@conf.example.com"}})
	f.handle(t, backend.RoomAdded{Account: "acct", Room: &backend.Room{ID: "ops@conf.example.com"}})

	assert.Equal(t, 2, f.chatCount(t))
}

func TestRoomsSharingMembersStayDistinct(t *testing.T) {
	f := newFixture(t, backend.ProtocolXMPP, nil)
	members := []backend.Member{{Address: "a@x.org"}, {Address: "b@x.org"}}
	room1 := &backend.Conversation{ID: "room1@muc.x.org", Account: "acct", Type: backend.ConversationRoom}
	room2 := &backend.Conversation{ID: "room2@muc.x.org", Account: "acct", Type: backend.ConversationRoom}
	defer runtime.KeepAlive(room1)
	defer runtime.KeepAlive(room2)

	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: room1, Members: members})
	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: room2, Members: members})
	f.handle(t, backend.MessageReceived{Account: "acct", Conversation: room2, Members: members[:1],
		Message: backend.Incoming{ID: "m1", Sender: "a@x.org", Body: "ops", Time: time.Now()}})

	var keys []string
	var second *chat.Chat
	f.do(t, func() {
		for _, c := range f.account.Chats() {
			keys = append(keys, c.Key())
		}
		second = f.account.FindChat("room2@muc.x.org")
	})
	assert.ElementsMatch(t, []string{"room1@muc.x.org", "room2@muc.x.org"}, keys)
	require.NotNil(t, second)
	f.do(t, func() {
		assert.Len(t, second.Messages(), 1)
		assert.Same(t, room2, second.Conversation())
	})
}

func TestGroupStaysApartFromDirectChat(t *testing.T) {
	f := newFixture(t, backend.ProtocolWhatsApp, nil)
	alice := "5511999990000@s.whatsapp.net"
	dm := &backend.Conversation{ID: alice, Account: "acct", Type: backend.ConversationIM}
	group := &backend.Conversation{ID: "1203630@g.us", Account: "acct", Type: backend.ConversationRoom,
		Room: &backend.Room{ID: "1203630@g.us"}}
	defer runtime.KeepAlive(dm)
	defer runtime.KeepAlive(group)
	members := []backend.Member{{Address: alice, Name: "Alice"}}

	f.handle(t, backend.MessageReceived{Account: "acct", Conversation: dm, Members: members,
		Message: backend.Incoming{ID: "d1", Sender: alice, Body: "hi", Time: time.Now()}})
	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: group})
	f.handle(t, backend.MessageReceived{Account: "acct", Conversation: group, Members: members,
		Message: backend.Incoming{ID: "g1", Sender: alice, Body: "hi all", Time: time.Now()}})

	var direct, room *chat.Chat
	var chats int
	f.do(t, func() {
		chats = len(f.account.Chats())
		direct = f.account.FindChat(alice)
		room = f.account.FindChat("1203630@g.us")
	})
	require.Equal(t, 2, chats)
	require.NotNil(t, direct)
	require.NotNil(t, room)
	f.do(t, func() {
		assert.Len(t, direct.Messages(), 1)
		assert.Same(t, dm, direct.Conversation())
		assert.Len(t, room.Messages(), 1)
		assert.Equal(t, chat.KindGroup, room.Kind())
	})
}

func TestRestoredGroupStaysApartFromDirectChat(t *testing.T) {
	f := newFixture(t, backend.ProtocolWhatsApp, nil)
	alice := "5511999990000@s.whatsapp.net"
	require.NoError(t, f.store.SaveChat(context.Background(), chat.Record{
		Account: "acct", Key: "1203630@g.us", Kind: chat.KindGroup, Room: "1203630@g.us",
		Protocol: backend.ProtocolWhatsApp, Members: []string{alice},
	}))
	done := make(chan error, 1)
	f.do(t, func() { f.account.Load(context.Background(), func(err error) { done <- err }) })
	require.NoError(t, <-done)

	dm := &backend.Conversation{ID: alice, Account: "acct", Type: backend.ConversationIM}
	defer runtime.KeepAlive(dm)
	f.handle(t, backend.MessageReceived{Account: "acct", Conversation: dm,
		Members: []backend.Member{{Address: alice}},
		Message: backend.Incoming{ID: "d1", Sender: alice, Body: "hi", Time: time.Now()}})

	assert.Equal(t, 2, f.chatCount(t))
}

// A live-session match wins even when an earlier chat matches on address.
func TestSessionMatchBeatsEarlierAddressMatch(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)
	conv := &backend.Conversation{ID: "+919633123456", Account: "acct"}
	defer runtime.KeepAlive(conv)

	var byNumber *chat.Chat
	f.do(t, func() { byNumber, _ = f.account.StartChat("2133219876") })
	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: conv,
		Members: []backend.Member{{Address: "+919633123456"}}})
	f.handle(t, backend.MessageReceived{Account: "acct", Conversation: conv,
		Members: []backend.Member{{Address: "2133219876"}},
		Message: backend.Incoming{ID: "s1", Sender: "2133219876", Body: "hello", Time: time.Now()}})

	var live *chat.Chat
	f.do(t, func() { live = f.account.FindChat("+919633123456") })
	require.NotNil(t, live)
	f.do(t, func() {
		assert.Empty(t, byNumber.Messages())
		assert.Len(t, live.Messages(), 1)
	})
}

func TestMembersKeyedByCanonicalNumber(t *testing.T) {
	f := newFixture(t, backend.ProtocolMMS, nil)
	conv := &backend.Conversation{ID: "mms-1", Account: "acct", Type: backend.ConversationRoom}
	defer runtime.KeepAlive(conv)
	f.session.MemberList = []backend.Member{{Address: "+1 213-321-9876", Name: "Bob"}}

	f.handle(t, backend.ConversationStarted{Account: "acct", Conversation: conv,
		Members: []backend.Member{{Address: "+12133219876"}}})

	var chats []*chat.Chat
	f.do(t, func() { chats = f.account.Chats() })
	require.Len(t, chats, 1)
	c := chats[0]
	// The room refresh reports the same member in another format.
	assert.Eventually(t, func() bool {
		var members []chat.Member
		f.do(t, func() { members = c.Members() })
		return len(members) == 1 && members[0].Name == "Bob" && members[0].Address == "+12133219876"
	}, time.Second, 5*time.Millisecond)
}

func TestLoadHistoryUsesPageSize(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, func(o *Options) { o.HistoryPageSize = 2 })
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		f.store.history["+12133219876"] = append(f.store.history["+12133219876"],
			chat.NewIncoming("", "+12133219876", "", "old", at.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, f.store.SaveChat(context.Background(), chat.Record{
		Account: "acct", Key: "+12133219876", Protocol: backend.ProtocolSMS, Members: []string{"+12133219876"},
	}))

	done := make(chan error, 1)
	f.do(t, func() { f.account.Load(context.Background(), func(err error) { done <- err }) })
	require.NoError(t, <-done)

	var c *chat.Chat
	f.do(t, func() { c = f.account.FindChat("+12133219876") })
	require.NotNil(t, c)
	assert.Eventually(t, func() bool {
		var n int
		f.do(t, func() { n = len(c.Messages()) })
		return n == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, f.store.requestedPageSizes())

	f.do(t, func() { f.account.LoadHistory(context.Background(), c) })
	assert.Eventually(t, func() bool {
		return len(f.store.requestedPageSizes()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDeliveryReportMarksDelivered(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, func(o *Options) { o.DeliveryReports = true })
	f.session.Receipt = backend.Receipt{ID: "sms-1", Reference: "42"}

	// The backend owns live conversations; chats only hold them weakly.
	conv := &backend.Conversation{ID: "2133219876", Account: "acct"}
	defer runtime.KeepAlive(conv)

	var c *chat.Chat
	f.handle(t, backend.Connectivity{Account: "acct", State: backend.ConnConnected})
	f.handle(t, backend.ConversationStarted{
		Account:      "acct",
		Conversation: conv,
		Members:      []backend.Member{{Address: "2133219876"}},
	})

	sent := make(chan *chat.Message, 1)
	var err error
	f.do(t, func() {
		c = f.account.FindChat("2133219876")
		err = f.account.Send(context.Background(), c, "hello", func(m *chat.Message, err error) {
			if err == nil {
				sent <- m
			}
		})
	})
	require.NoError(t, err)

	var msg *chat.Message
	select {
	case msg = <-sent:
	case <-time.After(time.Second):
		t.Fatal("send never completed")
	}
	assert.True(t, f.session.Sent()[0].RequestReport)

	f.handle(t, backend.DeliveryReport{Account: "acct", Reference: "42", Delivered: true})

	var st chat.Status
	f.do(t, func() { st = msg.Status() })
	assert.Equal(t, chat.StatusDelivered, st)
	assert.Eventually(t, func() bool {
		s, ok := f.store.savedStatus(msg.UID)
		return ok && s == chat.StatusDelivered
	}, time.Second, 5*time.Millisecond)
}

func TestConnectivityUnknownAndRegion(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)

	f.handle(t, backend.Connectivity{Account: "acct", State: backend.ConnConnected})
	f.handle(t, backend.Connectivity{Account: "acct", State: backend.ConnUnknown, Region: "IN"})

	var st status.State
	f.do(t, func() { st = f.account.Status() })
	assert.Equal(t, status.Unknown, st)
	assert.Equal(t, "IN", f.matcher.Region())
}

func TestLoadRestoresChats(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)
	require.NoError(t, f.store.SaveChat(context.Background(), chat.Record{
		Account: "acct", Key: "+12133219876", Protocol: backend.ProtocolSMS,
		Members: []string{"+12133219876"}, Unread: 4,
	}))

	done := make(chan error, 1)
	f.do(t, func() { f.account.Load(context.Background(), func(err error) { done <- err }) })
	require.NoError(t, <-done)

	var unread int
	var found bool
	f.do(t, func() {
		c := f.account.FindChat("213-321-9876")
		found = c != nil
		if found {
			unread = c.UnreadCount()
		}
	})
	assert.True(t, found)
	assert.Equal(t, 4, unread)
}

func TestDeleteChat(t *testing.T) {
	f := newFixture(t, backend.ProtocolSMS, nil)
	events, unsub := f.bus.Subscribe(bus.KindChatRemoved, 1)
	defer unsub()

	f.do(t, func() {
		c, _ := f.account.StartChat("2133219876")
		f.account.DeleteChat(context.Background(), c)
	})

	assert.Zero(t, f.chatCount(t))
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no removal notification")
	}
}
