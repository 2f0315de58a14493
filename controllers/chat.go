package controllers

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"AkuChat/middleware"
	"AkuChat/models"
	"AkuChat/pkg/cache"
	"AkuChat/pkg/chat"
)

var errChatNotFound = errors.New("chat not found")

// messageJSON is a stored message as the history endpoint returns it.
type messageJSON struct {
	chat.Message
	ChatID string `json:"chatId"`
}

func currentUser(c *gin.Context) (uint, bool) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "invalid subject in token")
	}
	return uid, ok
}

func loadChat(db *gorm.DB, uid uint, chatID string) (models.Chat, error) {
	var ch models.Chat
	err := db.Where("id = ? AND user_id = ?", chatID, uid).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ch, errChatNotFound
	}
	return ch, err
}

func chatOr404(c *gin.Context, db *gorm.DB, uid uint) (models.Chat, bool) {
	ch, err := loadChat(db, uid, c.Param("id"))
	switch {
	case errors.Is(err, errChatNotFound):
		fail(c, http.StatusNotFound, err.Error())
		return ch, false
	case err != nil:
		log.WithError(err).Error("[chat] load failed")
		fail(c, http.StatusInternalServerError, "db error")
		return ch, false
	}
	return ch, true
}

func ListChats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if !ok {
			return
		}
		var chats []models.Chat
		if err := db.Where("user_id = ?", uid).Order("created_at desc").Find(&chats).Error; err != nil {
			fail(c, http.StatusInternalServerError, "db error")
			return
		}
		out := make([]chat.Summary, 0, len(chats))
		for i := range chats {
			out = append(out, chats[i].Summary())
		}
		respond(c, http.StatusOK, out)
	}
}

// CreateChat creates a chat. Without an explicit title the user's newest chat
// is returned instead when it is still untitled and empty.
func CreateChat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if !ok {
			return
		}
		var body struct {
			Title string `json:"title" binding:"max=200"`
		}
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "invalid request")
			return
		}
		title := strings.TrimSpace(body.Title)

		if title == "" {
			var latest models.Chat
			err := db.Where("user_id = ?", uid).Order("created_at desc").First(&latest).Error
			if err == nil && chat.IsPlaceholderTitle(latest.Title) {
				var n int64
				if err := db.Model(&models.Message{}).Where("chat_id = ?", latest.ID).Count(&n).Error; err == nil && n == 0 {
					respond(c, http.StatusOK, gin.H{"chat": latest.Summary(), "created": false})
					return
				}
			}
		}

		ch := models.Chat{UserID: uid, Title: title}
		if err := db.Create(&ch).Error; err != nil {
			log.WithError(err).Error("[chat] create failed")
			fail(c, http.StatusInternalServerError, "failed to create chat")
			return
		}
		respond(c, http.StatusCreated, gin.H{"chat": ch.Summary(), "created": true})
	}
}

func GetChat(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if !ok {
			return
		}
		ch, ok := chatOr404(c, db, uid)
		if !ok {
			return
		}
		respond(c, http.StatusOK, ch.Summary())
	}
}

// DeleteChat removes a chat with its messages and forgets the cached replies
// to its prompts.
func DeleteChat(db *gorm.DB, responses cache.ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if !ok {
			return
		}
		ch, ok := chatOr404(c, db, uid)
		if !ok {
			return
		}
		var prompts []string
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Message{}).
				Where("chat_id = ? AND role = ?", ch.ID, string(chat.RoleUser)).
				Pluck("content", &prompts).Error; err != nil {
				return err
			}
			if err := tx.Where("chat_id = ?", ch.ID).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			return tx.Delete(&ch).Error
		})
		if err != nil {
			log.WithError(err).Error("[chat] delete failed")
			fail(c, http.StatusInternalServerError, "failed to delete chat")
			return
		}
		if responses != nil {
			uidStr := strconv.FormatUint(uint64(uid), 10)
			for _, p := range prompts {
				responses.InvalidateChatResponse(cache.ChatResponseKey(uidStr, p))
			}
		}
		respond(c, http.StatusOK, gin.H{"success": true, "message": "chat deleted"})
	}
}

type messageFilter struct {
	role   string
	before time.Time
	after  time.Time
	search string
}

func parseMessageFilter(c *gin.Context) (messageFilter, error) {
	var f messageFilter
	if r := strings.TrimSpace(c.Query("role")); r != "" {
		if r != string(chat.RoleUser) && r != string(chat.RoleAssistant) {
			return f, errors.New("role must be user or assistant")
		}
		f.role = r
	}
	for name, dst := range map[string]*time.Time{"before": &f.before, "after": &f.after} {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return f, errors.New(name + " must be an RFC 3339 timestamp")
			}
			*dst = t
		}
	}
	f.search = strings.TrimSpace(c.Query("search"))
	return f, nil
}

func (f messageFilter) apply(q *gorm.DB) *gorm.DB {
	if f.role != "" {
		q = q.Where("role = ?", f.role)
	}
	if !f.before.IsZero() {
		q = q.Where("created_at < ?", f.before)
	}
	if !f.after.IsZero() {
		q = q.Where("created_at > ?", f.after)
	}
	if f.search != "" {
		q = q.Where("LOWER(content) LIKE ?", "%"+strings.ToLower(f.search)+"%")
	}
	return q
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

// ListMessages serves one page of history. Page 1 holds the most recent
// messages; items within a page run oldest to newest.
func ListMessages(db *gorm.DB, defaultLimit, maxLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUser(c)
		if !ok {
			return
		}
		ch, ok := chatOr404(c, db, uid)
		if !ok {
			return
		}
		page, err := queryInt(c, "page", 1)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		limit, err := queryInt(c, "limit", defaultLimit)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		limit = min(limit, maxLimit)
		filter, err := parseMessageFilter(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		var total int64
		if err := filter.apply(db.Model(&models.Message{}).Where("chat_id = ?", ch.ID)).Count(&total).Error; err != nil {
			fail(c, http.StatusInternalServerError, "db error")
			return
		}
		var rows []models.Message
		err = filter.apply(db.Where("chat_id = ?", ch.ID)).
			Order("created_at desc").Order("id desc").
			Offset((page - 1) * limit).Limit(limit).
			Find(&rows).Error
		if err != nil {
			fail(c, http.StatusInternalServerError, "db error")
			return
		}
		slices.Reverse(rows)

		items := make([]messageJSON, 0, len(rows))
		for i := range rows {
			items = append(items, messageJSON{Message: rows[i].ChatMessage(), ChatID: ch.ID})
		}
		respond(c, http.StatusOK, gin.H{"items": items, "page": page, "limit": limit, "total": total})
	}
}
