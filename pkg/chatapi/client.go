package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"AkuChat/pkg/chat"
)

const (
	DefaultServerURL = "http://localhost:5000"
)

// ErrUnauthorized is returned for 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer from the chat service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the chat metadata and history services.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithServerURL sets the server URL for the client
func WithServerURL(u string) Option {
	return func(c *Client) {
		c.BaseURL = strings.TrimSuffix(u, "/")
	}
}

// WithToken sets the bearer token for the client
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

func New(opts ...Option) *Client {
	client := &Client{
		BaseURL: DefaultServerURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Token returns the current bearer token. It satisfies the credential source
// used by the conversation controller.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// envelope is the response wrapper used by every chat service endpoint.
type envelope[T any] struct {
	Data       T      `json:"data"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

type errorBody struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			if eb.Msg != "" {
				msg = eb.Msg
			} else if eb.Message != "" {
				msg = eb.Message
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("login response carried no token")
	}
	c.SetToken(out.AccessToken)
	return out.AccessToken, nil
}

func (c *Client) ListChats(ctx context.Context) ([]chat.Summary, error) {
	var out envelope[[]chat.Summary]
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateChat creates a chat with the given title, or the default title when
// empty. created is false when the service returned an existing chat.
func (c *Client) CreateChat(ctx context.Context, title string) (chat.Summary, bool, error) {
	var out envelope[struct {
		Chat    chat.Summary `json:"chat"`
		Created bool         `json:"created"`
	}]
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	if err := c.do(ctx, http.MethodPost, "/chats", body, &out); err != nil {
		return chat.Summary{}, false, err
	}
	return out.Data.Chat, out.Data.Created, nil
}

func (c *Client) GetChat(ctx context.Context, chatID string) (chat.Summary, error) {
	var out envelope[chat.Summary]
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID), nil, &out); err != nil {
		return chat.Summary{}, err
	}
	return out.Data, nil
}

// DeleteChat removes a chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+url.PathEscape(chatID), nil, nil)
}

// MessageQuery narrows a history request. Zero fields are not sent.
type MessageQuery struct {
	Page   int
	Limit  int
	Role   chat.Role
	Before string
	After  string
	Search string
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Role != "" {
		v.Set("role", string(q.Role))
	}
	if q.Before != "" {
		v.Set("before", q.Before)
	}
	if q.After != "" {
		v.Set("after", q.After)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// ListMessages fetches one page of history, items oldest to newest.
func (c *Client) ListMessages(ctx context.Context, chatID string, page, limit int) (chat.Page, error) {
	return c.QueryMessages(ctx, chatID, MessageQuery{Page: page, Limit: limit})
}

func (c *Client) QueryMessages(ctx context.Context, chatID string, q MessageQuery) (chat.Page, error) {
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	var out envelope[chat.Page]
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return chat.Page{}, err
	}
	for i := range out.Data.Items {
		out.Data.Items[i].Source = chat.SourceAPI
	}
	return out.Data, nil
}

// Health is the payload of the service health endpoint.
type Health struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out envelope[Health]
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return Health{}, err
	}
	return out.Data, nil
}
