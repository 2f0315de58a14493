package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	defaultMaxItems = 500
	sweepInterval   = time.Minute
)

// Memory is an in-process ResponseCache. Replies expire after their TTL and
// the least recently read reply is evicted once maxItems is exceeded.
type Memory struct {
	mu       sync.Mutex
	replies  map[string]*list.Element
	recent   *list.List // *reply, most recently used at the front
	maxItems int        // 0 = unlimited
	now      func() time.Time
}

type reply struct {
	key     string
	resp    chatResponse
	expires time.Time // zero never expires
}

func (r *reply) expired(now time.Time) bool {
	return !r.expires.IsZero() && now.After(r.expires)
}

var (
	defaultMemory *Memory
	defaultOnce   sync.Once
)

// New returns an empty cache holding at most maxItems replies (0 = unlimited).
// Expired replies are dropped when read or evicted; nothing sweeps them.
func New(maxItems int) *Memory {
	return &Memory{
		replies:  make(map[string]*list.Element),
		recent:   list.New(),
		maxItems: max(maxItems, 0),
		now:      time.Now,
	}
}

// Default returns the process-wide cache, swept for expired replies every minute.
func Default() *Memory {
	defaultOnce.Do(func() {
		defaultMemory = New(defaultMaxItems)
		go defaultMemory.sweepEvery(sweepInterval)
	})
	return defaultMemory
}

// SetMaxItems resizes the process-wide cache, evicting the oldest replies
// when it shrinks.
func SetMaxItems(n int) {
	m := Default()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxItems = max(n, 0)
	m.trimLocked()
}

// Len reports the number of stored replies, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent.Len()
}

// SetChatResponse keeps text only when the turn completed with a real reply.
// ttl <= 0 keeps it until evicted.
func (m *Memory) SetChatResponse(key, text string, status ResponseStatus, ttl time.Duration) {
	if !cacheable(text, status) {
		return
	}
	r := &reply{key: key, resp: chatResponse{Text: text, Status: status}}
	if ttl > 0 {
		r.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.replies[key]; ok {
		el.Value = r
		m.recent.MoveToFront(el)
		return
	}
	m.replies[key] = m.recent.PushFront(r)
	m.trimLocked()
}

func (m *Memory) GetChatResponse(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.replies[key]
	if !ok {
		return "", false
	}
	r := el.Value.(*reply)
	if r.expired(m.now()) {
		m.removeLocked(el)
		return "", false
	}
	m.recent.MoveToFront(el)
	return r.resp.Text, true
}

func (m *Memory) InvalidateChatResponse(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.replies[key]; ok {
		m.removeLocked(el)
	}
}

// sweep drops every expired reply and reports how many went.
func (m *Memory) sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for el := m.recent.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*reply).expired(now) {
			m.removeLocked(el)
			n++
		}
		el = next
	}
	return n
}

func (m *Memory) sweepEvery(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for range t.C {
		m.sweep()
	}
}

// trimLocked evicts least recently used replies above maxItems; caller holds m.mu.
func (m *Memory) trimLocked() {
	for m.maxItems > 0 && m.recent.Len() > m.maxItems {
		m.removeLocked(m.recent.Back())
	}
}

func (m *Memory) removeLocked(el *list.Element) {
	delete(m.replies, el.Value.(*reply).key)
	m.recent.Remove(el)
}
