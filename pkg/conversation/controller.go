package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/metrics"
	"AkuChat/pkg/stream"
)

const (
	DefaultPageSize = 50

	defaultMetadataTimeout = 15 * time.Second
)

// HistoryService serves pages of older messages, newest page first.
type HistoryService interface {
	ListMessages(ctx context.Context, chatID string, page, limit int) (chat.Page, error)
}

// MetadataService serves chat summaries.
type MetadataService interface {
	ListChats(ctx context.Context) ([]chat.Summary, error)
	CreateChat(ctx context.Context, title string) (chat.Summary, bool, error)
	GetChat(ctx context.Context, chatID string) (chat.Summary, error)
}

// Streamer opens the chunk stream of one turn.
type Streamer interface {
	Open(ctx context.Context, chatID, prompt, credential string) (stream.ChunkReader, error)
}

// CredentialSource returns the current bearer credential, empty when the
// user is signed out.
type CredentialSource interface {
	Token() string
}

// CredentialFunc adapts a plain func to CredentialSource.
type CredentialFunc func() string

func (f CredentialFunc) Token() string { return f() }

type Deps struct {
	History     HistoryService
	Metadata    MetadataService
	Streamer    Streamer
	Credentials CredentialSource
}

type Option func(*Controller)

func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithMetadataTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.metadataTimeout = d
	}
}

// Controller drives conversations stored in a Registry: it submits turns,
// reconciles their streams and pages backward through history.
type Controller struct {
	reg             *Registry
	deps            Deps
	pageSize        int
	metadataTimeout time.Duration
	now             func() time.Time

	viewMu  sync.Mutex
	viewGen uint64
	active  *attachment

	turns      sync.WaitGroup
	background sync.WaitGroup
}

func NewController(reg *Registry, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		reg:             reg,
		deps:            deps,
		pageSize:        DefaultPageSize,
		metadataTimeout: defaultMetadataTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Registry() *Registry {
	return c.reg
}

// Close waits for running turns and background title lookups.
func (c *Controller) Close() {
	c.turns.Wait()
	c.background.Wait()
}

func (c *Controller) credential() string {
	if c.deps.Credentials == nil {
		return ""
	}
	return strings.TrimSpace(c.deps.Credentials.Token())
}

// Turn is one submitted prompt and its streamed reply.
type Turn struct {
	ConversationID string
	OptimisticID   string

	done chan struct{}
	err  error
	text string
}

// Done is closed once the turn has been finalized.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn is finalized and returns its error, if any.
func (t *Turn) Wait() error {
	<-t.done
	return t.err
}

// Text returns the assistant text accumulated by the turn. Only valid after Done.
func (t *Turn) Text() string {
	return t.text
}

// Submit sends text as a new user turn in conversation id. The user message
// is shown at once under a local id and replaced when the server echoes it.
// The stream runs until ctx is done or the server ends it; switching views
// does not stop it.
func (c *Controller) Submit(ctx context.Context, id, text string) (*Turn, error) {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	now := c.now().UTC()
	optimistic := chat.Message{
		ID:        fmt.Sprintf("u-%d", now.UnixMilli()),
		Role:      chat.RoleUser,
		Content:   prompt,
		CreatedAt: now.Format(time.RFC3339Nano),
		Source:    chat.SourceLocal,
	}

	var (
		rejected error
		wasEmpty bool
	)
	_, ok := c.reg.Update(id, func(conv *chat.Conversation) {
		if conv.AwaitingResponse {
			rejected = ErrTurnInFlight
			return
		}
		wasEmpty = conv.Mode == chat.ModeEmpty && len(conv.Messages) == 0
		conv.Messages = append(conv.Messages, optimistic)
		conv.MarkDoc()
		conv.AwaitingResponse = true
		conv.StreamedText = ""
		conv.PendingUserID = optimistic.ID
	})
	if !ok {
		return nil, ErrUnknownConversation
	}
	if rejected != nil {
		return nil, rejected
	}

	metrics.TurnsStarted.Inc()
	c.reg.Notify(Event{Kind: EventMessages, ConversationID: id})
	c.reg.Notify(Event{Kind: EventTurnStarted, ConversationID: id})

	turn := &Turn{ConversationID: id, OptimisticID: optimistic.ID, done: make(chan struct{})}
	view := c.captureView(id)
	c.fire(view, func(h ViewHooks) {
		if h.OnThinking != nil {
			h.OnThinking(true)
		}
	})

	c.turns.Add(1)
	go c.runTurn(ctx, turn, prompt, wasEmpty, view)
	return turn, nil
}

func (c *Controller) runTurn(ctx context.Context, turn *Turn, prompt string, wasEmpty bool, view *attachment) {
	defer c.turns.Done()

	id := turn.ConversationID
	logger := log.WithField("chat", id)

	var full strings.Builder
	err := func() error {
		cred := c.credential()
		if cred == "" {
			return stream.ErrMissingCredential
		}
		r, err := c.deps.Streamer.Open(ctx, id, prompt, cred)
		if err != nil {
			return err
		}
		defer r.Close()

		titleRequested := false
		started := false
		return stream.Drain(r, func(ch chat.Chunk) {
			c.reg.Update(id, func(conv *chat.Conversation) {
				conv.Messages = chat.ApplyStreamChunk(conv.Messages, ch, turn.OptimisticID)
				if ch.Role == chat.RoleAssistant {
					conv.StreamedText += ch.Content
				}
			})
			c.reg.Notify(Event{Kind: EventMessages, ConversationID: id})

			if ch.Role != chat.RoleAssistant {
				return
			}
			first := !started
			started = true
			full.WriteString(ch.Content)
			text := full.String()
			c.fire(view, func(h ViewHooks) {
				if first && h.OnAssistantStarted != nil {
					h.OnAssistantStarted()
				}
				if h.OnStreamedText != nil {
					h.OnStreamedText(text)
				}
			})
			if wasEmpty && !titleRequested {
				titleRequested = true
				c.confirmTitle(id)
			}
		})
	}()

	if err != nil {
		logger.WithError(err).Warn("[conversation] turn failed")
	}
	c.finalize(turn, full.String(), wasEmpty, err, view)
}

func (c *Controller) finalize(turn *Turn, text string, wasEmpty bool, err error, view *attachment) {
	id := turn.ConversationID
	derived := false
	c.reg.Update(id, func(conv *chat.Conversation) {
		conv.AwaitingResponse = false
		conv.StreamedText = ""
		conv.PendingUserID = ""
		if wasEmpty && strings.TrimSpace(text) != "" && !conv.TitleConfirmed && conv.Title == chat.DefaultTitle {
			conv.Title = chat.DeriveTitle(text)
			derived = true
		}
	})

	c.fire(view, func(h ViewHooks) {
		if h.OnThinking != nil {
			h.OnThinking(false)
		}
	})

	if derived {
		c.reg.Notify(Event{Kind: EventTitle, ConversationID: id})
	}
	if err != nil {
		metrics.TurnsFinished.WithLabelValues("failed").Inc()
		c.reg.Notify(Event{Kind: EventError, ConversationID: id, Err: err})
	} else {
		metrics.TurnsFinished.WithLabelValues("completed").Inc()
	}
	c.reg.Notify(Event{Kind: EventTurnFinished, ConversationID: id, Err: err})

	turn.text = text
	turn.err = err
	close(turn.done)
}

// confirmTitle asks the metadata service for the canonical title without
// blocking the stream. Any failure leaves the title alone.
func (c *Controller) confirmTitle(id string) {
	if c.deps.Metadata == nil {
		return
	}
	if conv, ok := c.reg.Get(id); !ok || conv.TitleConfirmed {
		return
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.metadataTimeout)
		defer cancel()

		remote, err := c.deps.Metadata.GetChat(ctx, id)
		if err != nil {
			log.WithError(err).WithField("chat", id).Debug("[conversation] title confirmation failed")
			return
		}
		if chat.IsPlaceholderTitle(remote.Title) {
			return
		}
		c.reg.Update(id, func(conv *chat.Conversation) {
			conv.Title = strings.TrimSpace(remote.Title)
			conv.TitleConfirmed = true
		})
		c.reg.Notify(Event{Kind: EventTitle, ConversationID: id})
	}()
}

// Hydrate loads the newest page of history the first time a conversation is
// viewed. Messages that arrived in the meantime are kept.
func (c *Controller) Hydrate(ctx context.Context, id string) error {
	start := false
	_, ok := c.reg.Update(id, func(conv *chat.Conversation) {
		if conv.Page > 0 || conv.IsMessagesLoading {
			return
		}
		conv.IsMessagesLoading = true
		start = true
	})
	if !ok {
		return ErrUnknownConversation
	}
	if !start {
		return nil
	}

	page, err := c.deps.History.ListMessages(ctx, id, 1, c.pageSize)
	c.reg.Update(id, func(conv *chat.Conversation) {
		conv.IsMessagesLoading = false
		if err != nil {
			return
		}
		conv.Messages, conv.HasMoreMessages = chat.ApplyPage(conv.Messages, page)
		conv.Messages = chat.ReconcileOptimistic(conv.Messages, page, conv.PendingUserID)
		conv.Page = 1
		if len(conv.Messages) > 0 {
			conv.MarkDoc()
		}
	})
	if err != nil {
		log.WithError(err).WithField("chat", id).Warn("[conversation] history load failed")
		c.reg.Notify(Event{Kind: EventError, ConversationID: id, Err: err})
		return fmt.Errorf("load history: %w", err)
	}
	metrics.HistoryPagesLoaded.Inc()
	c.reg.Notify(Event{Kind: EventMessages, ConversationID: id})
	return nil
}

// LoadOlderMessages fetches the page before the oldest loaded one and
// prepends it. Only one fetch per conversation runs at a time; a call while
// one is running, or when nothing older exists, is a no-op reported as
// ErrLoadInFlight or ErrNoMoreMessages.
func (c *Controller) LoadOlderMessages(ctx context.Context, id string) error {
	var (
		next int
		skip error
	)
	_, ok := c.reg.Update(id, func(conv *chat.Conversation) {
		switch {
		case conv.IsLoadingMoreMessages:
			skip = ErrLoadInFlight
		case !conv.HasMoreMessages:
			skip = ErrNoMoreMessages
		default:
			conv.IsLoadingMoreMessages = true
			next = max(conv.Page, 1) + 1
		}
	})
	if !ok {
		return ErrUnknownConversation
	}
	if skip != nil {
		return skip
	}

	page, err := c.deps.History.ListMessages(ctx, id, next, c.pageSize)
	c.reg.Update(id, func(conv *chat.Conversation) {
		conv.IsLoadingMoreMessages = false
		if err != nil {
			return
		}
		if len(page.Items) == 0 {
			conv.HasMoreMessages = false
			return
		}
		conv.Messages, conv.HasMoreMessages = chat.ApplyPage(conv.Messages, page)
		conv.Page = next
		conv.MarkDoc()
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"chat": id, "page": next}).Warn("[conversation] older messages failed")
		c.reg.Notify(Event{Kind: EventError, ConversationID: id, Err: err})
		return fmt.Errorf("load page %d: %w", next, err)
	}
	metrics.HistoryPagesLoaded.Inc()
	c.reg.Notify(Event{Kind: EventMessages, ConversationID: id})
	return nil
}

// NewConversation creates a chat remotely and puts it first in the list.
func (c *Controller) NewConversation(ctx context.Context) (string, error) {
	s, _, err := c.deps.Metadata.CreateChat(ctx, "")
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	conv := chat.NewConversation(s)
	// a fresh chat has no history to hydrate
	conv.Page = 1
	c.reg.Prepend(conv)
	c.reg.Notify(Event{Kind: EventConversations, ConversationID: s.ID})
	return s.ID, nil
}

// Bootstrap loads the conversation list and picks the conversation to show.
// An explicit id wins; otherwise an existing empty "New chat" is reused, and
// a new chat is created only when none exists.
func (c *Controller) Bootstrap(ctx context.Context, explicitID string) (string, error) {
	summaries, err := c.deps.Metadata.ListChats(ctx)
	if err != nil {
		return "", fmt.Errorf("list chats: %w", err)
	}
	convs := make([]chat.Conversation, 0, len(summaries))
	for _, s := range summaries {
		convs = append(convs, chat.NewConversation(s))
	}
	c.reg.Replace(convs)
	c.reg.Notify(Event{Kind: EventConversations})

	if explicitID != "" {
		if _, ok := c.reg.Get(explicitID); ok {
			return explicitID, nil
		}
		s, err := c.deps.Metadata.GetChat(ctx, explicitID)
		if err != nil {
			return "", fmt.Errorf("get chat %s: %w", explicitID, err)
		}
		c.reg.Prepend(chat.NewConversation(s))
		c.reg.Notify(Event{Kind: EventConversations, ConversationID: s.ID})
		return s.ID, nil
	}

	for _, s := range summaries {
		if !strings.EqualFold(strings.TrimSpace(s.Title), chat.DefaultTitle) {
			continue
		}
		page, err := c.deps.History.ListMessages(ctx, s.ID, 1, 1)
		if err != nil {
			log.WithError(err).WithField("chat", s.ID).Debug("[conversation] probing empty chat failed")
			continue
		}
		if len(page.Items) == 0 && page.Total == 0 {
			return s.ID, nil
		}
	}
	return c.NewConversation(ctx)
}
