package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"AkuChat/pkg/chat"
)

type Chat struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    uint      `gorm:"not null;index"`
	Title     string    `gorm:"size:200"`
	Messages  []Message `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Chat) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Title == "" {
		c.Title = chat.DefaultTitle
	}
	return nil
}

func (c *Chat) Summary() chat.Summary {
	return chat.Summary{
		ID:        c.ID,
		UserID:    strconv.FormatUint(uint64(c.UserID), 10),
		Title:     c.Title,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
