package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
)

// Ingestor opens streaming turns against the chat stream service over HTTP.
type Ingestor struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Ingestor)

// WithHTTPClient sets the HTTP client. Streams run until the body ends, so the
// client should not carry a short overall timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Ingestor) {
		i.httpClient = c
	}
}

func NewIngestor(baseURL string, opts ...Option) *Ingestor {
	i := &Ingestor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Open starts a turn for prompt in chatID. A refused request is reported
// before any chunk is read.
func (i *Ingestor) Open(ctx context.Context, chatID, prompt, credential string) (ChunkReader, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}

	u := fmt.Sprintf("%s/chats/%s/messages/stream?content=%s", i.baseURL, url.PathEscape(chatID), url.QueryEscape(prompt))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "text/event-stream")

	log.WithField("chat", chatID).Debug("[stream] opening turn")
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamRejected, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrStreamRejected, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return NewReader(resp.Body), nil
}

// Stream opens a turn and delivers each chunk to onChunk in wire order.
func (i *Ingestor) Stream(ctx context.Context, chatID, prompt, credential string, onChunk func(chat.Chunk)) error {
	r, err := i.Open(ctx, chatID, prompt, credential)
	if err != nil {
		return err
	}
	defer r.Close()
	return Drain(r, onChunk)
}
