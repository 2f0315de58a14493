package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

type lastPrompt struct {
	text string
	ts   time.Time
}

// Guards protects the streaming endpoints: a token bucket per user and IP,
// a duplicate prompt window per chat, and a cap on concurrent turns per user.
type Guards struct {
	window   time.Duration
	capacity int

	rlMu    sync.Mutex
	buckets map[string]*bucket

	dupMu   sync.Mutex
	dupTTL  time.Duration
	lastMsg map[string]lastPrompt

	slotMu   sync.Mutex
	userConc int
	userSem  map[string]chan struct{}
}

func NewGuards(window time.Duration, capacity, userConc int, dupTTL time.Duration) *Guards {
	if capacity <= 0 {
		capacity = 1
	}
	if userConc <= 0 {
		userConc = 1
	}
	return &Guards{
		window:   window,
		capacity: capacity,
		buckets:  map[string]*bucket{},
		dupTTL:   dupTTL,
		lastMsg:  map[string]lastPrompt{},
		userConc: userConc,
		userSem:  map[string]chan struct{}{},
	}
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	return c.GetString(ContextUserIDKey) + "@" + clientIP(c)
}

// take consumes one token for key, refilling the bucket for elapsed time.
func (g *Guards) take(key string, now time.Time) bool {
	g.rlMu.Lock()
	defer g.rlMu.Unlock()
	b := g.buckets[key]
	if b == nil {
		b = &bucket{tokens: g.capacity, lastRefill: now}
		g.buckets[key] = b
	}
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 && g.window > 0 {
		add := int(float64(g.capacity) * (float64(elapsed) / float64(g.window)))
		if add > 0 {
			b.tokens = min(b.tokens+add, g.capacity)
			b.lastRefill = now
		}
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (g *Guards) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.take(userKey(c), time.Now()) {
			c.Header("Retry-After", strconv.Itoa(int(g.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		c.Next()
	}
}

// AllowPrompt reports whether uid may send text to chatID now. The same text
// to the same chat is refused within the duplicate window.
func (g *Guards) AllowPrompt(uid, chatID, text string) bool {
	now := time.Now()
	k := uid + "/" + chatID
	t := strings.TrimSpace(text)
	g.dupMu.Lock()
	defer g.dupMu.Unlock()
	if entry, ok := g.lastMsg[k]; ok && entry.text == t && now.Sub(entry.ts) < g.dupTTL {
		return false
	}
	g.lastMsg[k] = lastPrompt{text: t, ts: now}
	return true
}

// AcquireUserSlot blocks until uid has a free turn slot or ctx is done.
func (g *Guards) AcquireUserSlot(ctx context.Context, uid string) (release func(), err error) {
	g.slotMu.Lock()
	sem := g.userSem[uid]
	if sem == nil {
		sem = make(chan struct{}, g.userConc)
		g.userSem[uid] = sem
	}
	g.slotMu.Unlock()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sem }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
