package conversation

import (
	"context"
	"errors"
	"io"
	"sync"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/stream"
)

// chanReader replays chunks sent on ch and ends with err, or io.EOF when err
// is nil.
type chanReader struct {
	ch     chan chat.Chunk
	mu     sync.Mutex
	err    error
	closed bool
}

func newChanReader() *chanReader {
	return &chanReader{ch: make(chan chat.Chunk)}
}

func (r *chanReader) send(c chat.Chunk) { r.ch <- c }

func (r *chanReader) finish(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.ch)
}

func (r *chanReader) Next() (chat.Chunk, error) {
	c, ok := <-r.ch
	if ok {
		return c, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return chat.Chunk{}, r.err
	}
	return chat.Chunk{}, io.EOF
}

func (r *chanReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// sliceReader replays a fixed list of chunks.
type sliceReader struct {
	chunks []chat.Chunk
	err    error
}

func (r *sliceReader) Next() (chat.Chunk, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return chat.Chunk{}, r.err
		}
		return chat.Chunk{}, io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return c, nil
}

func (r *sliceReader) Close() error { return nil }

type fakeStreamer struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	open    func(chatID, prompt string) (stream.ChunkReader, error)
}

func (f *fakeStreamer) Open(_ context.Context, chatID, prompt, _ string) (stream.ChunkReader, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.open(chatID, prompt)
}

func (f *fakeStreamer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHistory struct {
	mu       sync.Mutex
	requests []int
	gate     chan struct{}
	pages    map[int]chat.Page
	err      error
}

func (f *fakeHistory) ListMessages(_ context.Context, _ string, page, limit int) (chat.Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, page)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return chat.Page{}, f.err
	}
	p, ok := f.pages[page]
	if !ok {
		return chat.Page{Page: page, Limit: limit}, nil
	}
	return p, nil
}

func (f *fakeHistory) requested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.requests...)
}

type fakeMetadata struct {
	mu       sync.Mutex
	title    string
	err      error
	getCalls int
	chats    []chat.Summary
	created  int
}

func (f *fakeMetadata) ListChats(context.Context) ([]chat.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Summary(nil), f.chats...), nil
}

func (f *fakeMetadata) CreateChat(context.Context, string) (chat.Summary, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	s := chat.Summary{ID: "created-chat", Title: chat.DefaultTitle}
	f.chats = append([]chat.Summary{s}, f.chats...)
	return s, true, nil
}

func (f *fakeMetadata) GetChat(_ context.Context, id string) (chat.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.err != nil {
		return chat.Summary{}, f.err
	}
	return chat.Summary{ID: id, Title: f.title}, nil
}

func (f *fakeMetadata) gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

var errBoom = errors.New("boom")

func staticToken(tok string) CredentialFunc {
	return func() string { return tok }
}
