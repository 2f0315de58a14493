package chat

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source records where a message came from. It only matters for display time.
type Source string

const (
	SourceLocal Source = "local"
	SourceAPI   Source = "api"
)

type Mode string

const (
	ModeEmpty Mode = "empty"
	ModeDoc   Mode = "doc"
)

// DefaultTitle is the placeholder title of a conversation nobody has named yet.
const DefaultTitle = "New chat"

// APIClockOffset is the fixed shift between the chat service clock and local
// display time.
const APIClockOffset = 5 * time.Hour

type Message struct {
	ID                string  `json:"id"`
	Role              Role    `json:"role"`
	Content           string  `json:"content"`
	CreatedAt         string  `json:"createdAt"`
	PreviousMessageID *string `json:"previousMessageId"`
	Source            Source  `json:"source,omitempty"`
}

// DisplayTime parses CreatedAt and shifts API-sourced messages by offset.
func (m Message) DisplayTime(offset time.Duration) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
	if err != nil {
		return time.Time{}, err
	}
	if m.Source == SourceAPI {
		t = t.Add(offset)
	}
	return t, nil
}

// Chunk is one record of a streaming turn as delivered by the stream service.
type Chunk struct {
	MessageID         string  `json:"messageId"`
	PreviousMessageID *string `json:"previousMessageId"`
	ChatID            string  `json:"chatId"`
	Role              Role    `json:"role"`
	Content           string  `json:"content"`
	Index             int     `json:"index"`
	CreatedAt         string  `json:"createdAt"`
}

// Page is one page of history, items ordered oldest to newest.
type Page struct {
	Items []Message `json:"items"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Total int       `json:"total"`
}

func (p Page) HasMore() bool {
	return p.Page*p.Limit < p.Total
}

// Summary is chat metadata as returned by the metadata service.
type Summary struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

type Conversation struct {
	ID    string
	Title string
	Mode  Mode

	Messages              []Message
	Page                  int
	HasMoreMessages       bool
	IsMessagesLoading     bool
	IsLoadingMoreMessages bool

	AwaitingResponse bool
	StreamedText     string
	TitleConfirmed   bool
	// PendingUserID is the optimistic id of the in-flight turn's prompt.
	PendingUserID string
}

// NewConversation returns an empty conversation for a chat summary.
func NewConversation(s Summary) Conversation {
	title := s.Title
	if title == "" {
		title = DefaultTitle
	}
	return Conversation{ID: s.ID, Title: title, Mode: ModeEmpty}
}

// MarkDoc switches the conversation into document mode. It never switches back.
func (c *Conversation) MarkDoc() {
	c.Mode = ModeDoc
}

// Clone returns a copy that shares no message storage with c.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}
