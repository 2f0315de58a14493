package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
)

// WebSocketIngestor opens streaming turns over a WebSocket. Every text
// message carries the JSON payload of one frame.
type WebSocketIngestor struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWebSocketIngestor(baseURL string) *WebSocketIngestor {
	return &WebSocketIngestor{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
	}
}

func (w *WebSocketIngestor) endpoint(chatID, prompt, credential string) (string, error) {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chats/" + chatID + "/stream"
	q := url.Values{}
	q.Set("token", credential)
	q.Set("content", prompt)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *WebSocketIngestor) Open(ctx context.Context, chatID, prompt, credential string) (ChunkReader, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	u, err := w.endpoint(chatID, prompt, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamRejected, err)
	}

	conn, resp, err := w.dialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: status %d: %w", ErrStreamRejected, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamRejected, err)
	}
	log.WithField("chat", chatID).Debug("[stream] websocket turn opened")

	r := &wsReader{conn: conn, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-r.done:
		}
	}()
	return r, nil
}

type wsReader struct {
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
	err    error
}

func (r *wsReader) Next() (chat.Chunk, error) {
	for r.err == nil {
		mt, payload, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.err = io.EOF
			} else {
				r.err = fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
			}
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		if c, ok := DecodePayload(payload); ok {
			return c, nil
		}
	}
	return chat.Chunk{}, r.err
}

func (r *wsReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	err := r.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
