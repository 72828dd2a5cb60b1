// Package sidecar produces the optional side-files for a recording:
// transcription.txt from a speech-to-text service and analysis.json from a
// text-generation service. Only the response contracts matter to the rest
// of the system; the index learns about side-files through reconciliation.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Transcriber sends audio to a transcription service and receives text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error)
}

// TranscriptionResult contains the transcription API response.
type TranscriptionResult struct {
	Text     string
	Language string
}

// DefaultTimeout is the default HTTP request timeout for transcription.
const DefaultTimeout = 5 * time.Minute

// WhisperClient implements Transcriber against a whisper-asr-webservice.
type WhisperClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// WhisperOption configures the WhisperClient.
type WhisperOption func(*WhisperClient)

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) WhisperOption {
	return func(c *WhisperClient) {
		c.httpClient.Timeout = d
	}
}

// WithLanguage sets the transcription language hint; "auto" omits it.
func WithLanguage(lang string) WhisperOption {
	return func(c *WhisperClient) {
		c.language = lang
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) WhisperOption {
	return func(c *WhisperClient) {
		c.httpClient = client
	}
}

// NewWhisperClient creates a client for the whisper-asr-webservice.
func NewWhisperClient(baseURL string, opts ...WhisperOption) *WhisperClient {
	c := &WhisperClient{
		baseURL:    baseURL,
		language:   "auto",
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads the audio file and returns the transcription.
func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	reqURL, err := c.buildURL()
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse JSON response: %w", err)
	}

	return &TranscriptionResult{Text: parsed.Text, Language: parsed.Language}, nil
}

func (c *WhisperClient) buildURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/asr"
	}

	q := u.Query()
	q.Set("output", "json")
	if c.language != "" && c.language != "auto" {
		q.Set("language", c.language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
