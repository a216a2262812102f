package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// RetryGenerator retries a Generator with exponential backoff. With one
// attempt it is a pass-through.
type RetryGenerator struct {
	next     Generator
	attempts int
	backoff  gax.Backoff
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewRetryGenerator(next Generator, attempts int, initial, maxPause time.Duration, logger *slog.Logger) *RetryGenerator {
	if attempts < 1 {
		attempts = 1
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if maxPause < initial {
		maxPause = initial
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryGenerator{
		next:     next,
		attempts: attempts,
		backoff:  gax.Backoff{Initial: initial, Max: maxPause, Multiplier: 2},
		logger:   logger,
		sleep:    gax.Sleep,
	}
}

func (r *RetryGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	bo := r.backoff
	for attempt := 1; ; attempt++ {
		out, err := r.next.Generate(ctx, system, prompt)
		if err == nil {
			return out, nil
		}
		if attempt >= r.attempts || !Retryable(ctx, err) {
			return "", err
		}
		pause := bo.Pause()
		r.logger.Warn("llm.retry", "attempt", attempt, "max_attempts", r.attempts, "pause_ms", pause.Milliseconds(), "error", err)
		if serr := r.sleep(ctx, pause); serr != nil {
			return "", err
		}
	}
}

// Retryable reports whether a failed call may succeed on a later attempt.
func Retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, common.ErrMissingCredentials) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}
