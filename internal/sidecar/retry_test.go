package sidecar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// countingAnalyzer fails a fixed number of times before succeeding.
type countingAnalyzer struct {
	failures int
	err      error
	calls    int
}

func (a *countingAnalyzer) Analyze(ctx context.Context, transcript string) (string, error) {
	a.calls++
	if a.calls <= a.failures {
		return "", a.err
	}
	return "ok", nil
}

func TestRetryAnalyzer_ServerErrorRetries(t *testing.T) {
	inner := &countingAnalyzer{
		failures: 2,
		err:      fmt.Errorf("API error: status 503: overloaded"),
	}
	client := NewRetryAnalyzer(inner,
		WithRetryCount(3),
		WithBaseDelay(time.Millisecond),
	)

	raw, err := client.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if raw != "ok" {
		t.Errorf("unexpected result: %q", raw)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryAnalyzer_ClientErrorDoesNotRetry(t *testing.T) {
	inner := &countingAnalyzer{
		failures: 10,
		err:      fmt.Errorf("API error: status 401: invalid key"),
	}
	client := NewRetryAnalyzer(inner,
		WithRetryCount(3),
		WithBaseDelay(time.Millisecond),
	)

	if _, err := client.Analyze(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("4xx must not retry, got %d calls", inner.calls)
	}
}

func TestRetryAnalyzer_ExhaustsRetries(t *testing.T) {
	inner := &countingAnalyzer{
		failures: 10,
		err:      fmt.Errorf("API error: status 500: boom"),
	}
	client := NewRetryAnalyzer(inner,
		WithRetryCount(2),
		WithBaseDelay(time.Millisecond),
	)

	_, err := client.Analyze(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "failed after 2 retries") {
		t.Errorf("unexpected error text: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected initial call plus 2 retries, got %d", inner.calls)
	}
}

type countingTranscriber struct {
	failures int
	err      error
	calls    int
}

func (c *countingTranscriber) Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.err
	}
	return &TranscriptionResult{Text: "hello"}, nil
}

func TestRetryTranscriber_NetworkErrorRetries(t *testing.T) {
	inner := &countingTranscriber{
		failures: 1,
		err:      &net.OpError{Op: "dial", Err: errors.New("connection refused")},
	}
	client := NewRetryTranscriber(inner,
		WithRetryCount(3),
		WithBaseDelay(time.Millisecond),
	)

	result, err := client.Transcribe(context.Background(), "/tmp/a.m4a")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryTranscriber_ContextCancelStops(t *testing.T) {
	inner := &countingTranscriber{
		failures: 10,
		err:      fmt.Errorf("API error: status 500: boom"),
	}
	client := NewRetryTranscriber(inner,
		WithRetryCount(5),
		WithBaseDelay(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Transcribe(ctx, "/tmp/a.m4a")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not exit on cancellation")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"op_error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"status_500", fmt.Errorf("API error: status 500: boom"), true},
		{"status_503", fmt.Errorf("API error: status 503: busy"), true},
		{"status_400", fmt.Errorf("API error: status 400: bad"), false},
		{"status_404", fmt.Errorf("API error: status 404: gone"), false},
		{"connection_refused_text", errors.New("dial tcp: connection refused"), true},
		{"plain_error", errors.New("something else entirely"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
