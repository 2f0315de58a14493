package services

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
)

// ChatMessage is one prior turn handed to a responder. Role is "user" or
// "model".
type ChatMessage struct {
	Role string
	Text string
}

// Responder produces an assistant reply for a conversation, reporting text
// through onDelta as it is generated. The returned string is the full reply.
type Responder interface {
	Name() string
	Stream(ctx context.Context, history []ChatMessage, onDelta func(string)) (string, error)
}

// HistoryFromMessages converts stored messages to responder turns.
func HistoryFromMessages(msgs []chat.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == chat.RoleAssistant {
			role = "model"
		}
		out = append(out, ChatMessage{Role: role, Text: m.Content})
	}
	return out
}

// FallbackResponder tries Primary and switches to Secondary when Primary
// fails before emitting any text.
type FallbackResponder struct {
	Primary   Responder
	Secondary Responder
}

func (f *FallbackResponder) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

func (f *FallbackResponder) Stream(ctx context.Context, history []ChatMessage, onDelta func(string)) (string, error) {
	emitted := false
	text, err := f.Primary.Stream(ctx, history, func(d string) {
		emitted = true
		if onDelta != nil {
			onDelta(d)
		}
	})
	if err == nil || emitted || ctx.Err() != nil {
		return text, err
	}
	if !errors.Is(err, ErrGeminiDisabled) {
		log.WithError(err).Printf("[responder] %s failed, using %s", f.Primary.Name(), f.Secondary.Name())
	}
	return f.Secondary.Stream(ctx, history, onDelta)
}
