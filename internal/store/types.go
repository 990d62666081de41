package store

// Chat is a row in the chats table.
type Chat struct {
	Account       string
	Key           string
	Name          string
	Kind          int
	Room          string
	Protocol      uint
	Members       []string
	UnreadCount   int
	Archived      bool
	Blocked       bool
	LastMessageAt int64
}

// Message is a row in the messages table.
type Message struct {
	ID          int64
	UID         string
	Account     string
	ChatKey     string
	MsgID       string
	Reference   string
	SenderAddr  string
	SenderName  string
	Body        string
	ContentType string
	Direction   int
	Status      int
	Timestamp   int64
}

// Account is a row in the accounts table.
type Account struct {
	ID       string
	Protocol uint
	Enabled  bool
	Secret   string
}
