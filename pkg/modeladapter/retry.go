package modeladapter

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/modeladapter/usage"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
)

var _ Completer = (*RetryCompleter)(nil)

// RetryOpts configures a RetryCompleter.
type RetryOpts struct {
	RPM        int           // Requests per minute (0 = no limit).
	MaxRetries int           // Max retries on 429 (default 3).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// RetryCompleter wraps a Completer with a requests-per-minute throttle and
// retries on *RateLimitError using exponential backoff with ±25% jitter.
type RetryCompleter struct {
	inner      Completer
	rpm        int
	maxRetries int
	baseDelay  time.Duration

	mu       sync.Mutex
	requests []time.Time
	fallback usage.Tracker

	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
	randFunc  func() float64
}

// NewRetryCompleter wraps inner.
func NewRetryCompleter(inner Completer, opts RetryOpts) *RetryCompleter {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &RetryCompleter{
		inner:      inner,
		rpm:        opts.RPM,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		nowFunc:    time.Now,
		sleepFunc:  contextSleep,
		randFunc:   rand.Float64,
	}
}

// SetNowFunc overrides the time source (for testing).
func (r *RetryCompleter) SetNowFunc(fn func() time.Time) { r.nowFunc = fn }

// SetSleepFunc overrides the sleep function (for testing).
func (r *RetryCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the jitter source (for testing).
func (r *RetryCompleter) SetRandFunc(fn func() float64) { r.randFunc = fn }

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// waitForSlot blocks until fewer than rpm requests were issued in the last
// minute, then records a new request.
func (r *RetryCompleter) waitForSlot(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.nowFunc()
		cutoff := now.Add(-time.Minute)

		i := 0
		for i < len(r.requests) && !r.requests[i].After(cutoff) {
			i++
		}
		r.requests = r.requests[i:]

		if r.rpm <= 0 || len(r.requests) < r.rpm {
			r.requests = append(r.requests, now)
			r.mu.Unlock()
			return nil
		}

		wait := max(r.requests[0].Add(time.Minute).Sub(now), 10*time.Millisecond)
		r.mu.Unlock()

		if err := r.sleepFunc(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *RetryCompleter) jitter(d time.Duration) time.Duration {
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // ±25%
	return time.Duration(float64(d) * factor)
}

// Complete implements Completer.
func (r *RetryCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	var lastErr error

	for attempt := range r.maxRetries + 1 {
		if err := r.waitForSlot(ctx); err != nil {
			return message.Message{}, err
		}

		msg, err := r.inner.Complete(ctx, c, tools)
		if err == nil {
			return msg, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return message.Message{}, err
		}

		lastErr = err
		if attempt >= r.maxRetries {
			break
		}

		backoff := r.jitter(max(r.baseDelay<<attempt, rle.RetryAfter))
		if err := r.sleepFunc(ctx, backoff); err != nil {
			return message.Message{}, err
		}
	}

	return message.Message{}, lastErr
}

// UsageTracker forwards to the inner completer when it reports usage.
func (r *RetryCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}
	return &r.fallback
}
