package conversation

import (
	"sync"

	"AkuChat/pkg/chat"
)

type EventKind string

const (
	EventConversations EventKind = "conversations"
	EventMessages      EventKind = "messages"
	EventTurnStarted   EventKind = "turn_started"
	EventTurnFinished  EventKind = "turn_finished"
	EventTitle         EventKind = "title"
	EventError         EventKind = "error"
)

// Event tells observers that some state in the registry changed.
type Event struct {
	Kind           EventKind
	ConversationID string
	Err            error
}

type entry struct {
	mu   sync.Mutex
	conv chat.Conversation
}

// Registry holds every known conversation. Each conversation has its own
// lock, so writes to one conversation never wait on another, and Update is
// the only way to change a conversation's message list.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	subMu   sync.RWMutex
	nextSub int
	subs    map[int]func(Event)
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		subs:    make(map[int]func(Event)),
	}
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// Put adds conv at the end of the list or overwrites a conversation with the
// same id in place.
func (r *Registry) Put(conv chat.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[conv.ID]; ok {
		e.mu.Lock()
		e.conv = conv.Clone()
		e.mu.Unlock()
		return
	}
	r.entries[conv.ID] = &entry{conv: conv.Clone()}
	r.order = append(r.order, conv.ID)
}

// Prepend adds conv at the front of the list. An existing conversation with
// the same id keeps its state and moves to the front.
func (r *Registry) Prepend(conv chat.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[conv.ID]; !ok {
		r.entries[conv.ID] = &entry{conv: conv.Clone()}
	}
	order := make([]string, 0, len(r.order)+1)
	order = append(order, conv.ID)
	for _, id := range r.order {
		if id != conv.ID {
			order = append(order, id)
		}
	}
	r.order = order
}

// Replace sets the conversation list to list, in that order. Conversations
// already known keep their messages and turn state; their title is refreshed
// unless it was already confirmed.
func (r *Registry) Replace(list []chat.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make(map[string]*entry, len(list))
	order := make([]string, 0, len(list))
	for _, conv := range list {
		if _, dup := entries[conv.ID]; dup {
			continue
		}
		if e, ok := r.entries[conv.ID]; ok {
			e.mu.Lock()
			if !e.conv.TitleConfirmed && !chat.IsPlaceholderTitle(conv.Title) {
				e.conv.Title = conv.Title
			}
			e.mu.Unlock()
			entries[conv.ID] = e
		} else {
			entries[conv.ID] = &entry{conv: conv.Clone()}
		}
		order = append(order, conv.ID)
	}
	r.entries = entries
	r.order = order
}

// Get returns a copy of the conversation.
func (r *Registry) Get(id string) (chat.Conversation, bool) {
	e := r.lookup(id)
	if e == nil {
		return chat.Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Clone(), true
}

// List returns copies of all conversations in list order.
func (r *Registry) List() []chat.Conversation {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	out := make([]chat.Conversation, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.conv.Clone())
		e.mu.Unlock()
	}
	return out
}

// Update runs fn on the stored conversation while holding its lock and
// returns a copy of the result. fn must not call back into the registry.
func (r *Registry) Update(id string, fn func(*chat.Conversation)) (chat.Conversation, bool) {
	e := r.lookup(id)
	if e == nil {
		return chat.Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.conv)
	return e.conv.Clone(), true
}

// Subscribe registers fn for every event. The returned func removes it.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
		})
	}
}

// Notify delivers ev to all subscribers. It is called with no registry lock
// held.
func (r *Registry) Notify(ev Event) {
	r.subMu.RLock()
	subs := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
