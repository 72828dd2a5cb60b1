package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Analyzer turns transcription text into the raw analysis payload. The
// return value is the service's response body verbatim; turning it into
// structured fields is the analysis parser's job, downstream.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (string, error)
}

// analysisPrompt instructs the model to emit the analysis schema. Responses
// routinely violate it anyway, which is why the parser is staged.
const analysisPrompt = `You analyze a voice note transcription. Respond with JSON only, matching:
{"suggestedTitle": string, "summary": string, "events": [{"name": string, "date": string, "time": string}], "reminders": [{"name": string, "date": string, "time": string}]}
Omit events and reminders when none are mentioned. No surrounding text.`

// DefaultAnalyzeTimeout is the default HTTP request timeout for analysis.
const DefaultAnalyzeTimeout = 2 * time.Minute

// ChatClient implements Analyzer against an OpenAI-compatible
// chat-completions endpoint.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// ChatOption configures the ChatClient.
type ChatOption func(*ChatClient)

// WithChatHTTPClient sets a custom HTTP client.
func WithChatHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatClient) {
		c.httpClient = client
	}
}

// WithChatTimeout sets the HTTP request timeout.
func WithChatTimeout(d time.Duration) ChatOption {
	return func(c *ChatClient) {
		c.httpClient.Timeout = d
	}
}

// NewChatClient creates a chat-completions analysis client.
func NewChatClient(baseURL, apiKey, model string, opts ...ChatOption) *ChatClient {
	c := &ChatClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: DefaultAnalyzeTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analyze posts the transcript and returns the raw response body. The body
// is the chat-completion envelope; it is stored as-is in analysis.json.
func (c *ChatClient) Analyze(ctx context.Context, transcript string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisPrompt},
			{Role: "user", Content: transcript},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error: status %d: %s", resp.StatusCode, string(raw))
	}
	return string(raw), nil
}
