package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"AkuChat/pkg/chat"
)

type Message struct {
	ID                string    `gorm:"primaryKey;size:36"`
	ChatID            string    `gorm:"size:36;index:idx_chat_created,priority:1;not null"`
	Role              string    `gorm:"size:20;not null"` // "user" or "assistant"
	Content           string    `gorm:"type:text;not null"`
	PreviousMessageID *string   `gorm:"size:36"`
	CreatedAt         time.Time `gorm:"index:idx_chat_created,priority:2"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *Message) CreatedAtString() string {
	return m.CreatedAt.UTC().Format(time.RFC3339Nano)
}

func (m *Message) ChatMessage() chat.Message {
	return chat.Message{
		ID:                m.ID,
		Role:              chat.Role(m.Role),
		Content:           m.Content,
		CreatedAt:         m.CreatedAtString(),
		PreviousMessageID: m.PreviousMessageID,
	}
}

// Chunk renders the message as one stream record carrying delta as content.
func (m *Message) Chunk(delta string, index int) chat.Chunk {
	return chat.Chunk{
		MessageID:         m.ID,
		PreviousMessageID: m.PreviousMessageID,
		ChatID:            m.ChatID,
		Role:              chat.Role(m.Role),
		Content:           delta,
		Index:             index,
		CreatedAt:         m.CreatedAtString(),
	}
}
