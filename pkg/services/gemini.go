package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	fallbackGeminiModel  = "gemini-2.0-flash"
	systemInstruction    = "You are a helpful assistant. Answer clearly and in a structured way using markdown headings and bullet points. Ask a short clarifying question when the context is not enough."
)

var ErrGeminiDisabled = errors.New("gemini is disabled via config")

type GeminiResponder struct {
	apiKey     string
	model      string
	enabled    bool
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

type GeminiOption func(*GeminiResponder)

func WithGeminiBaseURL(u string) GeminiOption {
	return func(g *GeminiResponder) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiResponder) { g.httpClient = c }
}

func WithGeminiRetryDelay(d time.Duration) GeminiOption {
	return func(g *GeminiResponder) { g.retryDelay = d }
}

func NewGeminiResponder(apiKey, model string, enabled bool, opts ...GeminiOption) *GeminiResponder {
	g := &GeminiResponder{
		apiKey:     apiKey,
		model:      model,
		enabled:    enabled,
		baseURL:    DefaultGeminiBaseURL,
		httpClient: http.DefaultClient,
		retryDelay: 2 * time.Second,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (s *GeminiResponder) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (r geminiResponse) text() string {
	var b strings.Builder
	if len(r.Candidates) > 0 {
		for _, p := range r.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func buildGeminiBody(history []ChatMessage) ([]byte, error) {
	contents := make([]geminiContent, 0, len(history))
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "model" {
			role = "user"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Text}}})
	}
	return json.Marshal(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
		Contents:          contents,
		GenerationConfig: map[string]any{
			"temperature":     0.6,
			"maxOutputTokens": 2048,
			"topK":            40,
			"topP":            0.9,
		},
	})
}

func (s *GeminiResponder) models() []string {
	out := []string{}
	for _, m := range []string{s.model, fallbackGeminiModel} {
		m = strings.TrimSpace(m)
		if m != "" && (len(out) == 0 || out[0] != m) {
			out = append(out, m)
		}
	}
	return out
}

// Stream tries each model in turn, retrying once on quota or availability
// errors. A model that streams nothing is asked again without streaming.
func (s *GeminiResponder) Stream(ctx context.Context, history []ChatMessage, onDelta func(string)) (string, error) {
	if !s.enabled {
		return "", ErrGeminiDisabled
	}
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[gemini] GEMINI_API_KEY is not set")
		return "", errors.New("GEMINI_API_KEY is not set")
	}
	body, err := buildGeminiBody(history)
	if err != nil {
		return "", err
	}

	var failures []string
	for _, m := range s.models() {
		text, err := s.streamGenerate(ctx, m, body, onDelta)
		if err != nil && text == "" && isRetriable(err) {
			sleepWithContext(ctx, s.retryDelay)
			text, err = s.streamGenerate(ctx, m, body, onDelta)
		}
		if err == nil {
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
			if full, gerr := s.generate(ctx, m, body); gerr == nil && strings.TrimSpace(full) != "" {
				if onDelta != nil {
					onDelta(full)
				}
				return full, nil
			}
		}
		if err != nil {
			if text != "" || ctx.Err() != nil {
				// partial output cannot be retried on another model
				return text, err
			}
			failures = append(failures, fmt.Sprintf("%s -> %v", m, err))
			log.WithError(err).Printf("[gemini] stream model %s failed", m)
		}
	}
	return "", fmt.Errorf("all gemini stream models failed: %s", strings.Join(failures, "; "))
}

func (s *GeminiResponder) post(ctx context.Context, model, method string, body []byte, accept string) (*http.Response, error) {
	url := fmt.Sprintf("%s/models/%s:%s", s.baseURL, model, method)
	log.Debugf("[gemini] POST %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

func (s *GeminiResponder) generate(ctx context.Context, model string, body []byte) (string, error) {
	resp, err := s.post(ctx, model, "generateContent", body, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode error: %w", err)
	}
	return parsed.text(), nil
}

func (s *GeminiResponder) streamGenerate(ctx context.Context, model string, body []byte, onDelta func(string)) (string, error) {
	resp, err := s.post(ctx, model, "streamGenerateContent?alt=sse", body, "text/event-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	full := strings.Builder{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "data:") {
			line = strings.TrimSpace(line[5:])
		}
		var obj geminiResponse
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		if txt := obj.text(); txt != "" {
			full.WriteString(txt)
			if onDelta != nil {
				onDelta(txt)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read error: %w", err)
	}
	return full.String(), nil
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "resource_exhausted") || strings.Contains(e, "quota") {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
