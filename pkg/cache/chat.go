package cache

import (
	"encoding/hex"
	"hash/fnv"
	"strings"
	"time"
)

// ResponseStatus is how a streamed reply ended.
type ResponseStatus string

const (
	StatusCompleted ResponseStatus = "completed"
	StatusCanceled  ResponseStatus = "canceled"
	StatusFailed    ResponseStatus = "failed"
)

// FallbackReply is stored when a turn produced no text. It is never cached.
const FallbackReply = "Sorry, no answer yet."

// ResponseCache stores finished assistant replies keyed by user and prompt.
type ResponseCache interface {
	SetChatResponse(key, text string, status ResponseStatus, ttl time.Duration)
	GetChatResponse(key string) (string, bool)
	InvalidateChatResponse(key string)
}

var (
	_ ResponseCache = (*Memory)(nil)
	_ ResponseCache = (*RedisCache)(nil)
)

type chatResponse struct {
	Text   string         `json:"text"`
	Status ResponseStatus `json:"status"`
}

// ChatResponseKey is the cache key of a reply to prompt for user uid.
// Prompts differing only in case or surrounding space share a key.
func ChatResponseKey(uid, prompt string) string {
	h := fnv.New64a()
	for _, part := range []string{"chat-final", uid, strings.ToLower(strings.TrimSpace(prompt))} {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func cacheable(text string, status ResponseStatus) bool {
	t := strings.TrimSpace(text)
	return status == StatusCompleted && t != "" && t != FallbackReply
}
