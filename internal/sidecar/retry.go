package sidecar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/voxvault/voxvault/internal/logging"
)

// DefaultRetryCount is the default number of retry attempts.
const DefaultRetryCount = 3

// DefaultBaseDelay is the initial delay for exponential backoff.
const DefaultBaseDelay = 1 * time.Second

// RetryTranscriber wraps a Transcriber with exponential backoff. Connection
// failures and 5xx responses retry; 4xx client errors do not.
type RetryTranscriber struct {
	inner Transcriber
	retry retrier
}

// RetryAnalyzer wraps an Analyzer with the same policy.
type RetryAnalyzer struct {
	inner Analyzer
	retry retrier
}

// RetryOption configures retry behavior.
type RetryOption func(*retrier)

// WithRetryCount sets the maximum number of retry attempts.
func WithRetryCount(n int) RetryOption {
	return func(r *retrier) { r.maxRetry = n }
}

// WithBaseDelay sets the initial backoff delay.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(r *retrier) { r.baseDelay = d }
}

// WithRetryLogger sets the logger for retry attempts.
func WithRetryLogger(log logging.Logger) RetryOption {
	return func(r *retrier) { r.log = log }
}

// NewRetryTranscriber wraps inner with retry logic.
func NewRetryTranscriber(inner Transcriber, opts ...RetryOption) *RetryTranscriber {
	return &RetryTranscriber{inner: inner, retry: newRetrier(opts)}
}

// NewRetryAnalyzer wraps inner with retry logic.
func NewRetryAnalyzer(inner Analyzer, opts ...RetryOption) *RetryAnalyzer {
	return &RetryAnalyzer{inner: inner, retry: newRetrier(opts)}
}

// Transcribe retries the wrapped call per the retry policy.
func (c *RetryTranscriber) Transcribe(ctx context.Context, audioPath string) (*TranscriptionResult, error) {
	var result *TranscriptionResult
	err := c.retry.do(ctx, "transcribe", func() error {
		var err error
		result, err = c.inner.Transcribe(ctx, audioPath)
		return err
	})
	return result, err
}

// Analyze retries the wrapped call per the retry policy.
func (c *RetryAnalyzer) Analyze(ctx context.Context, transcript string) (string, error) {
	var raw string
	err := c.retry.do(ctx, "analyze", func() error {
		var err error
		raw, err = c.inner.Analyze(ctx, transcript)
		return err
	})
	return raw, err
}

type retrier struct {
	maxRetry  int
	baseDelay time.Duration
	log       logging.Logger
}

func newRetrier(opts []RetryOption) retrier {
	r := retrier{
		maxRetry:  DefaultRetryCount,
		baseDelay: DefaultBaseDelay,
		log:       logging.Nop{},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetry; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay * (1 << (attempt - 1)) // 1s, 2s, 4s, ...
			r.log.Debug("retrying",
				logging.String("op", op),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s failed after %d retries: %w", op, r.maxRetry, lastErr)
}

// isRetryable reports whether the error warrants another attempt: network
// failures and 5xx responses do, 4xx client errors and cancellation do not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "API error: status ") {
		var status int
		if _, scanErr := fmt.Sscanf(errStr, "API error: status %d", &status); scanErr == nil {
			return status >= 500 && status < 600
		}
	}
	// Fallback substring check when the net error got flattened through %v
	// formatting somewhere along the way.
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "send request:") {
		return true
	}

	return false
}
