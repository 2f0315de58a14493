package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"AkuChat/middleware"
	"AkuChat/models"
	"AkuChat/pkg/cache"
	"AkuChat/pkg/chat"
	"AkuChat/pkg/metrics"
	svc "AkuChat/pkg/services"
	"AkuChat/pkg/utils"
)

const (
	defaultHistoryTurns = 20
	promptTitleRunes    = 30
	cachedChunkRunes    = 28
	cachedChunkDelay    = 12 * time.Millisecond
)

var (
	errEmptyContent  = errors.New("content is required")
	errDuplicateTurn = errors.New("duplicate message, please wait before resending")
)

// Turns runs one user prompt and its streamed reply against a chat. The SSE
// and WebSocket handlers share it and differ only in how chunks are written.
type Turns struct {
	DB        *gorm.DB
	Responder svc.Responder
	Cache     cache.ResponseCache
	Guards    *middleware.Guards
	CacheTTL  time.Duration
	// HistoryTurns bounds how many earlier messages the responder sees.
	HistoryTurns int
}

type turnRequest struct {
	uid    string
	chat   models.Chat
	prompt string
}

// prepare validates the request before anything is written to the client.
func (t *Turns) prepare(c *gin.Context) (*turnRequest, int, error) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return nil, http.StatusUnauthorized, errors.New("invalid subject in token")
	}
	prompt := strings.TrimSpace(c.Query("content"))
	if prompt == "" {
		return nil, http.StatusBadRequest, errEmptyContent
	}
	ch, err := loadChat(t.DB, uid, c.Param("id"))
	switch {
	case errors.Is(err, errChatNotFound):
		return nil, http.StatusNotFound, err
	case err != nil:
		return nil, http.StatusInternalServerError, err
	}
	uidStr := strconv.FormatUint(uint64(uid), 10)
	if !t.Guards.AllowPrompt(uidStr, ch.ID, prompt) {
		return nil, http.StatusConflict, errDuplicateTurn
	}
	return &turnRequest{uid: uidStr, chat: ch, prompt: prompt}, 0, nil
}

func (t *Turns) recentMessages(chatID string) ([]models.Message, error) {
	n := t.HistoryTurns
	if n <= 0 {
		n = defaultHistoryTurns
	}
	var rows []models.Message
	err := t.DB.Where("chat_id = ?", chatID).Order("created_at desc").Order("id desc").Limit(n).Find(&rows).Error
	slices.Reverse(rows)
	return rows, err
}

func promptTitle(prompt string) string {
	return utils.TruncateRunes(strings.TrimSpace(prompt), promptTitleRunes)
}

// run persists the prompt, echoes it, streams the assistant reply through
// send and persists the reply. A send error cancels the responder.
func (t *Turns) run(ctx context.Context, req *turnRequest, transport string, send func(chat.Chunk) error) error {
	start := time.Now()
	metrics.ServerTurnsActive.Inc()
	defer metrics.ServerTurnsActive.Dec()

	release, err := t.Guards.AcquireUserSlot(ctx, req.uid)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prior, err := t.recentMessages(req.chat.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	var prev *string
	if len(prior) > 0 {
		id := prior[len(prior)-1].ID
		prev = &id
	}

	user := models.Message{
		ChatID:            req.chat.ID,
		Role:              string(chat.RoleUser),
		Content:           req.prompt,
		PreviousMessageID: prev,
		CreatedAt:         time.Now(),
	}
	if err := t.DB.Create(&user).Error; err != nil {
		return fmt.Errorf("save user message: %w", err)
	}
	if chat.IsPlaceholderTitle(req.chat.Title) {
		title := promptTitle(req.prompt)
		if err := t.DB.Model(&models.Chat{}).Where("id = ?", req.chat.ID).Update("title", title).Error; err != nil {
			log.WithError(err).Warn("[turn] title update failed")
		}
	}
	if err := send(user.Chunk(user.Content, 0)); err != nil {
		return err
	}

	asst := models.Message{
		ID:                uuid.NewString(),
		ChatID:            req.chat.ID,
		Role:              string(chat.RoleAssistant),
		PreviousMessageID: &user.ID,
		CreatedAt:         time.Now(),
	}
	var full strings.Builder
	var sendErr error
	index := 0
	emit := func(delta string) {
		if delta == "" || sendErr != nil {
			return
		}
		full.WriteString(delta)
		if err := send(asst.Chunk(delta, index)); err != nil {
			sendErr = err
			cancel()
			return
		}
		index++
	}

	key := cache.ChatResponseKey(req.uid, req.prompt)
	source := t.Responder.Name()
	var respErr error
	if cached, ok := t.Cache.GetChatResponse(key); ok {
		metrics.ResponseCacheLookups.WithLabelValues("hit").Inc()
		source = "cache"
		streamCached(ctx, cached, emit)
	} else {
		metrics.ResponseCacheLookups.WithLabelValues("miss").Inc()
		history := make([]chat.Message, 0, len(prior)+1)
		for i := range prior {
			history = append(history, prior[i].ChatMessage())
		}
		history = append(history, user.ChatMessage())
		_, respErr = t.Responder.Stream(ctx, svc.HistoryFromMessages(history), emit)
	}

	status := cache.StatusCompleted
	switch {
	case sendErr != nil || ctx.Err() != nil:
		status = cache.StatusCanceled
	case respErr != nil:
		status = cache.StatusFailed
		log.WithError(respErr).Printf("[turn] responder %s failed chat=%s", source, req.chat.ID)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		if status != cache.StatusCanceled {
			emit(cache.FallbackReply)
		}
		text = cache.FallbackReply
	}

	asst.Content = text
	if err := t.DB.Create(&asst).Error; err != nil {
		log.WithError(err).Error("[turn] save assistant message failed")
	}
	t.Cache.SetChatResponse(key, text, status, t.CacheTTL)

	metrics.ServerTurnDuration.WithLabelValues(transport, source).Observe(time.Since(start).Seconds())
	log.Printf("[turn] chat=%s transport=%s source=%s status=%s chunks=%d", req.chat.ID, transport, source, status, index)
	return sendErr
}

// streamCached replays a cached reply in small rune-safe pieces.
func streamCached(ctx context.Context, text string, emit func(string)) {
	runes := []rune(text)
	for i := 0; i < len(runes); i += cachedChunkRunes {
		if ctx.Err() != nil {
			return
		}
		end := min(i+cachedChunkRunes, len(runes))
		emit(string(runes[i:end]))
		select {
		case <-ctx.Done():
			return
		case <-time.After(cachedChunkDelay):
		}
	}
}
