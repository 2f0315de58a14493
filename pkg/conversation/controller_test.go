package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/stream"
)

func newTestController(t *testing.T, streamer *fakeStreamer, history *fakeHistory, meta *fakeMetadata) (*Controller, *Registry) {
	t.Helper()
	if history == nil {
		history = &fakeHistory{}
	}
	if meta == nil {
		meta = &fakeMetadata{title: chat.DefaultTitle}
	}
	reg := NewRegistry()
	reg.Put(chat.NewConversation(chat.Summary{ID: "c1"}))
	var ms int64
	c := NewController(reg, Deps{
		History:     history,
		Metadata:    meta,
		Streamer:    streamer,
		Credentials: staticToken("tok"),
	}, WithPageSize(2), WithClock(func() time.Time {
		ms++
		return time.UnixMilli(1700000000000 + ms)
	}))
	t.Cleanup(c.Close)
	return c, reg
}

func assistant(id, content string, index int) chat.Chunk {
	return chat.Chunk{MessageID: id, ChatID: "c1", Role: chat.RoleAssistant, Content: content, Index: index, CreatedAt: "2025-01-01T00:00:01Z"}
}

func messageIDs(conv chat.Conversation) []string {
	out := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		out = append(out, m.ID)
	}
	return out
}

func TestSubmitEndToEnd(t *testing.T) {
	r := newChanReader()
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) { return r, nil }}
	c, reg := newTestController(t, streamer, nil, nil)

	turn, err := c.Submit(context.Background(), "c1", "Hello")
	require.NoError(t, err)

	conv, _ := reg.Get("c1")
	assert.Equal(t, chat.ModeDoc, conv.Mode, "mode switches before any chunk arrives")
	assert.True(t, conv.AwaitingResponse)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, turn.OptimisticID, conv.Messages[0].ID)
	assert.True(t, strings.HasPrefix(turn.OptimisticID, "u-"))
	assert.Equal(t, chat.SourceLocal, conv.Messages[0].Source)

	r.send(assistant("a1", "## Greeting\n\n", 0))
	r.send(assistant("a1", "Hi there!", 1))
	r.finish(nil)
	require.NoError(t, turn.Wait())

	conv, _ = reg.Get("c1")
	assert.False(t, conv.AwaitingResponse)
	assert.Equal(t, []string{turn.OptimisticID, "a1"}, messageIDs(conv))
	assert.Equal(t, "## Greeting\n\nHi there!", conv.Messages[1].Content)
	assert.Empty(t, conv.StreamedText, "streamed text is cleared once the turn ends")
	assert.Empty(t, conv.PendingUserID)
	assert.Equal(t, "Greeting", conv.Title)
	assert.Equal(t, "## Greeting\n\nHi there!", turn.Text())
	assert.Equal(t, []string{"Hello"}, streamer.prompts)
}

func TestSubmitReplacesOptimisticWithEcho(t *testing.T) {
	var optimistic string
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) {
		return &sliceReader{chunks: []chat.Chunk{
			{MessageID: "m1", ChatID: "c1", Role: chat.RoleUser, Content: "hello", CreatedAt: "t"},
			assistant("m2", "Hi", 1),
		}}, nil
	}}
	c, reg := newTestController(t, streamer, nil, nil)

	turn, err := c.Submit(context.Background(), "c1", "hello")
	require.NoError(t, err)
	optimistic = turn.OptimisticID
	require.NoError(t, turn.Wait())

	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(conv))
	assert.NotContains(t, messageIDs(conv), optimistic)
}

func TestHydrateDuringTurnKeepsOneUserMessage(t *testing.T) {
	r := newChanReader()
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) { return r, nil }}
	history := &fakeHistory{pages: map[int]chat.Page{
		1: {Items: []chat.Message{{ID: "srv-u", Role: chat.RoleUser, Content: "Hello", CreatedAt: "t", Source: chat.SourceAPI}}, Page: 1, Limit: 2, Total: 1},
	}}
	c, reg := newTestController(t, streamer, history, nil)

	turn, err := c.Submit(context.Background(), "c1", "Hello")
	require.NoError(t, err)
	require.NoError(t, c.Hydrate(context.Background(), "c1"))

	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{"srv-u"}, messageIDs(conv))

	r.send(chat.Chunk{MessageID: "srv-u", ChatID: "c1", Role: chat.RoleUser, Content: "Hello", CreatedAt: "t"})
	r.send(assistant("a1", "Hi", 1))
	r.finish(nil)
	require.NoError(t, turn.Wait())

	conv, _ = reg.Get("c1")
	assert.Equal(t, []string{"srv-u", "a1"}, messageIDs(conv))
	assert.Equal(t, "Hello", conv.Messages[0].Content)
}

func TestTurnOnLoadedChatKeepsTitle(t *testing.T) {
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) {
		return &sliceReader{chunks: []chat.Chunk{assistant("a2", "## Renamed\n\nbody", 0)}}, nil
	}}
	history := &fakeHistory{pages: map[int]chat.Page{
		1: {Items: []chat.Message{{ID: "m0", Role: chat.RoleUser, Content: "earlier", CreatedAt: "t"}}, Page: 1, Limit: 2, Total: 1},
	}}
	meta := &fakeMetadata{title: chat.DefaultTitle}
	c, reg := newTestController(t, streamer, history, meta)
	require.NoError(t, c.Hydrate(context.Background(), "c1"))

	turn, err := c.Submit(context.Background(), "c1", "again")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())
	c.Close()

	conv, _ := reg.Get("c1")
	assert.Equal(t, chat.DefaultTitle, conv.Title)
	assert.Zero(t, meta.gets(), "only the first turn of an empty chat asks for a title")
}

func TestSubmitRejections(t *testing.T) {
	r := newChanReader()
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) { return r, nil }}
	c, reg := newTestController(t, streamer, nil, nil)

	_, err := c.Submit(context.Background(), "c1", "   \n")
	require.ErrorIs(t, err, ErrEmptyPrompt)
	conv, _ := reg.Get("c1")
	assert.Empty(t, conv.Messages)
	assert.Equal(t, chat.ModeEmpty, conv.Mode)

	_, err = c.Submit(context.Background(), "nope", "hi")
	require.ErrorIs(t, err, ErrUnknownConversation)

	turn, err := c.Submit(context.Background(), "c1", "first")
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "c1", "second")
	require.ErrorIs(t, err, ErrTurnInFlight)

	conv, _ = reg.Get("c1")
	assert.Len(t, conv.Messages, 1, "rejected submit adds nothing")

	r.finish(nil)
	require.NoError(t, turn.Wait())
	assert.Equal(t, 1, streamer.callCount())
}

func TestSubmitFailureKeepsOptimisticMessage(t *testing.T) {
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) {
		return nil, fmt.Errorf("%w: status 500", stream.ErrStreamRejected)
	}}
	c, reg := newTestController(t, streamer, nil, nil)

	var events []Event
	var mu sync.Mutex
	unsubscribe := reg.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer unsubscribe()

	turn, err := c.Submit(context.Background(), "c1", "hello")
	require.NoError(t, err)
	require.ErrorIs(t, turn.Wait(), stream.ErrStreamRejected)

	conv, _ := reg.Get("c1")
	assert.False(t, conv.AwaitingResponse)
	assert.Equal(t, []string{turn.OptimisticID}, messageIDs(conv))
	assert.Equal(t, chat.DefaultTitle, conv.Title)

	mu.Lock()
	defer mu.Unlock()
	var sawError bool
	for _, ev := range events {
		if ev.Kind == EventError {
			sawError = true
			assert.ErrorIs(t, ev.Err, stream.ErrStreamRejected)
		}
	}
	assert.True(t, sawError)
}

func TestSubmitMidStreamFailureKeepsDeliveredChunks(t *testing.T) {
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) {
		return &sliceReader{chunks: []chat.Chunk{assistant("a1", "## Partial\nbody", 0)}, err: stream.ErrStreamInterrupted}, nil
	}}
	c, reg := newTestController(t, streamer, nil, nil)

	turn, err := c.Submit(context.Background(), "c1", "hello")
	require.NoError(t, err)
	require.ErrorIs(t, turn.Wait(), stream.ErrStreamInterrupted)

	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{turn.OptimisticID, "a1"}, messageIDs(conv))
	assert.Equal(t, "Partial", conv.Title, "a failed turn with text still derives a title")
}

func TestSubmitWithoutCredential(t *testing.T) {
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) { return &sliceReader{}, nil }}
	c, reg := newTestController(t, streamer, nil, nil)
	c.deps.Credentials = staticToken("")

	turn, err := c.Submit(context.Background(), "c1", "hello")
	require.NoError(t, err)
	require.ErrorIs(t, turn.Wait(), stream.ErrMissingCredential)
	assert.Zero(t, streamer.callCount())

	conv, _ := reg.Get("c1")
	assert.False(t, conv.AwaitingResponse)
	assert.Len(t, conv.Messages, 1)
}

func TestTitleConfirmationWins(t *testing.T) {
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) {
		return &sliceReader{chunks: []chat.Chunk{assistant("a1", "## Derived", 0), assistant("a1", " more", 1)}}, nil
	}}
	meta := &fakeMetadata{title: "Trip to Bali"}
	c, reg := newTestController(t, streamer, nil, meta)

	turn, err := c.Submit(context.Background(), "c1", "plan a trip")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())
	c.Close()

	conv, _ := reg.Get("c1")
	assert.Equal(t, "Trip to Bali", conv.Title)
	assert.True(t, conv.TitleConfirmed)
	assert.Equal(t, 1, meta.gets(), "confirmation is requested once per turn")
}

func TestTitleConfirmationOnlyForFirstTurn(t *testing.T) {
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) {
		return &sliceReader{chunks: []chat.Chunk{assistant(fmt.Sprintf("a-%d", time.Now().UnixNano()), "reply", 0)}}, nil
	}}
	meta := &fakeMetadata{err: errBoom}
	c, _ := newTestController(t, streamer, nil, meta)

	turn, err := c.Submit(context.Background(), "c1", "one")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())
	turn, err = c.Submit(context.Background(), "c1", "two")
	require.NoError(t, err)
	require.NoError(t, turn.Wait())
	c.Close()

	assert.Equal(t, 1, meta.gets())
}

func TestLoadOlderMessages(t *testing.T) {
	history := &fakeHistory{pages: map[int]chat.Page{
		2: {Items: []chat.Message{{ID: "o1"}, {ID: "o2"}}, Page: 2, Limit: 2, Total: 6},
		3: {Items: []chat.Message{{ID: "o0"}, {ID: "o1"}}, Page: 3, Limit: 2, Total: 6},
	}}
	c, reg := newTestController(t, &fakeStreamer{}, history, nil)
	reg.Update("c1", func(conv *chat.Conversation) {
		conv.Messages = []chat.Message{{ID: "n1"}, {ID: "n2"}}
		conv.Page = 1
		conv.HasMoreMessages = true
		conv.MarkDoc()
	})

	require.NoError(t, c.LoadOlderMessages(context.Background(), "c1"))
	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{"o1", "o2", "n1", "n2"}, messageIDs(conv))
	assert.Equal(t, 2, conv.Page)
	assert.True(t, conv.HasMoreMessages)

	require.NoError(t, c.LoadOlderMessages(context.Background(), "c1"))
	conv, _ = reg.Get("c1")
	assert.Equal(t, []string{"o0", "o1", "o2", "n1", "n2"}, messageIDs(conv))
	assert.Equal(t, 3, conv.Page)
	assert.False(t, conv.HasMoreMessages)

	require.ErrorIs(t, c.LoadOlderMessages(context.Background(), "c1"), ErrNoMoreMessages)
	assert.Equal(t, []int{2, 3}, history.requested())
}

func TestLoadOlderMessagesEmptyPageStops(t *testing.T) {
	c, reg := newTestController(t, &fakeStreamer{}, &fakeHistory{}, nil)
	reg.Update("c1", func(conv *chat.Conversation) {
		conv.Messages = []chat.Message{{ID: "n1"}}
		conv.Page = 1
		conv.HasMoreMessages = true
	})

	require.NoError(t, c.LoadOlderMessages(context.Background(), "c1"))
	conv, _ := reg.Get("c1")
	assert.False(t, conv.HasMoreMessages)
	assert.Equal(t, 1, conv.Page)
	assert.Equal(t, []string{"n1"}, messageIDs(conv))
}

func TestLoadOlderMessagesFailure(t *testing.T) {
	history := &fakeHistory{err: errBoom}
	c, reg := newTestController(t, &fakeStreamer{}, history, nil)
	reg.Update("c1", func(conv *chat.Conversation) {
		conv.Page = 1
		conv.HasMoreMessages = true
	})

	err := c.LoadOlderMessages(context.Background(), "c1")
	require.ErrorIs(t, err, errBoom)
	conv, _ := reg.Get("c1")
	assert.False(t, conv.IsLoadingMoreMessages)
	assert.True(t, conv.HasMoreMessages, "a failed fetch leaves hasMore alone")
	assert.Equal(t, 1, conv.Page)
}

func TestLoadOlderMessagesSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	history := &fakeHistory{gate: gate, pages: map[int]chat.Page{
		2: {Items: []chat.Message{{ID: "o1"}}, Page: 2, Limit: 2, Total: 3},
	}}
	c, reg := newTestController(t, &fakeStreamer{}, history, nil)
	reg.Update("c1", func(conv *chat.Conversation) {
		conv.Messages = []chat.Message{{ID: "n1"}}
		conv.Page = 1
		conv.HasMoreMessages = true
	})

	done := make(chan error, 1)
	go func() { done <- c.LoadOlderMessages(context.Background(), "c1") }()

	require.Eventually(t, func() bool { return len(history.requested()) == 1 }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, c.LoadOlderMessages(context.Background(), "c1"), ErrLoadInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, []int{2}, history.requested())
	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{"o1", "n1"}, messageIDs(conv))
}

func TestStreamAndPaginationInterleave(t *testing.T) {
	r := newChanReader()
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) { return r, nil }}
	gate := make(chan struct{})
	history := &fakeHistory{gate: gate, pages: map[int]chat.Page{
		2: {Items: []chat.Message{{ID: "o1"}, {ID: "o2"}}, Page: 2, Limit: 2, Total: 4},
	}}
	c, reg := newTestController(t, streamer, history, nil)
	reg.Update("c1", func(conv *chat.Conversation) {
		conv.Messages = []chat.Message{{ID: "n1"}, {ID: "n2"}}
		conv.Page = 1
		conv.HasMoreMessages = true
		conv.MarkDoc()
	})

	turn, err := c.Submit(context.Background(), "c1", "hi")
	require.NoError(t, err)

	loaded := make(chan error, 1)
	go func() { loaded <- c.LoadOlderMessages(context.Background(), "c1") }()
	require.Eventually(t, func() bool { return len(history.requested()) == 1 }, time.Second, 5*time.Millisecond)

	r.send(chat.Chunk{MessageID: "m1", ChatID: "c1", Role: chat.RoleUser, Content: "hi", CreatedAt: "t"})
	r.send(assistant("a1", "par", 0))
	close(gate)
	require.NoError(t, <-loaded)
	r.send(assistant("a1", "tial", 1))
	r.finish(nil)
	require.NoError(t, turn.Wait())

	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{"o1", "o2", "n1", "n2", "m1", "a1"}, messageIDs(conv))
	assert.Equal(t, "partial", conv.Messages[5].Content)
	assert.False(t, conv.HasMoreMessages)
}

func TestHydrateKeepsEarlyMessages(t *testing.T) {
	history := &fakeHistory{pages: map[int]chat.Page{
		1: {Items: []chat.Message{{ID: "h1"}, {ID: "h2"}}, Page: 1, Limit: 2, Total: 5},
	}}
	c, reg := newTestController(t, &fakeStreamer{}, history, nil)
	reg.Update("c1", func(conv *chat.Conversation) {
		conv.Messages = []chat.Message{{ID: "u-1", Role: chat.RoleUser}}
	})

	require.NoError(t, c.Hydrate(context.Background(), "c1"))
	conv, _ := reg.Get("c1")
	assert.Equal(t, []string{"h1", "h2", "u-1"}, messageIDs(conv))
	assert.Equal(t, chat.ModeDoc, conv.Mode)
	assert.Equal(t, 1, conv.Page)
	assert.True(t, conv.HasMoreMessages)

	require.NoError(t, c.Hydrate(context.Background(), "c1"))
	assert.Equal(t, []int{1}, history.requested(), "hydration happens once")
}

func TestHydrateEmptyConversationStaysEmpty(t *testing.T) {
	c, reg := newTestController(t, &fakeStreamer{}, &fakeHistory{}, nil)
	require.NoError(t, c.Hydrate(context.Background(), "c1"))
	conv, _ := reg.Get("c1")
	assert.Equal(t, chat.ModeEmpty, conv.Mode)
	assert.False(t, conv.HasMoreMessages)
}

func TestStaleViewHooksDoNotFire(t *testing.T) {
	r := newChanReader()
	streamer := &fakeStreamer{open: func(string, string) (stream.ChunkReader, error) { return r, nil }}
	c, reg := newTestController(t, streamer, nil, nil)
	reg.Put(chat.NewConversation(chat.Summary{ID: "c2"}))

	var mu sync.Mutex
	var thinking []bool
	var texts []string
	started := 0
	view := c.Attach("c1", ViewHooks{
		OnThinking:         func(b bool) { mu.Lock(); thinking = append(thinking, b); mu.Unlock() },
		OnAssistantStarted: func() { mu.Lock(); started++; mu.Unlock() },
		OnStreamedText:     func(s string) { mu.Lock(); texts = append(texts, s); mu.Unlock() },
	})

	turn, err := c.Submit(context.Background(), "c1", "hi")
	require.NoError(t, err)
	r.send(assistant("a1", "one", 0))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(texts) == 1
	}, time.Second, 5*time.Millisecond)

	other := c.Attach("c2", ViewHooks{})
	assert.False(t, view.Current())
	assert.True(t, other.Current())

	r.send(assistant("a1", " two", 1))
	r.finish(nil)
	require.NoError(t, turn.Wait())

	mu.Lock()
	assert.Equal(t, []bool{true}, thinking)
	assert.Equal(t, 1, started)
	assert.Equal(t, []string{"one"}, texts)
	mu.Unlock()

	conv, _ := reg.Get("c1")
	assert.Equal(t, "one two", conv.Messages[len(conv.Messages)-1].Content, "state still updates after the view went away")

	other.Detach()
	view.Detach()
	assert.False(t, other.Current())
}

func TestBootstrapReusesEmptyChat(t *testing.T) {
	meta := &fakeMetadata{chats: []chat.Summary{
		{ID: "busy", Title: chat.DefaultTitle},
		{ID: "idle", Title: "new chat"},
		{ID: "named", Title: "Trip"},
	}}
	history := &fakeHistory{pages: map[int]chat.Page{
		1: {Items: []chat.Message{{ID: "x"}}, Page: 1, Limit: 1, Total: 1},
	}}
	reg := NewRegistry()
	c := NewController(reg, Deps{History: &perChatHistory{byChat: map[string]HistoryService{"busy": history}}, Metadata: meta})

	id, err := c.Bootstrap(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "idle", id)
	assert.Len(t, reg.List(), 3)
	assert.Zero(t, meta.created)

	id, err = c.Bootstrap(context.Background(), "named")
	require.NoError(t, err)
	assert.Equal(t, "named", id)
}

func TestBootstrapCreatesChat(t *testing.T) {
	meta := &fakeMetadata{chats: []chat.Summary{{ID: "named", Title: "Trip"}}}
	reg := NewRegistry()
	c := NewController(reg, Deps{History: &fakeHistory{}, Metadata: meta})

	id, err := c.Bootstrap(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "created-chat", id)
	assert.Equal(t, 1, meta.created)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "created-chat", list[0].ID)
	assert.Equal(t, chat.DefaultTitle, list[0].Title)
}

type perChatHistory struct {
	byChat map[string]HistoryService
}

func (p *perChatHistory) ListMessages(ctx context.Context, chatID string, page, limit int) (chat.Page, error) {
	if h, ok := p.byChat[chatID]; ok {
		return h.ListMessages(ctx, chatID, page, limit)
	}
	return chat.Page{Page: page, Limit: limit}, nil
}
