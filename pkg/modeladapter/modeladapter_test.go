package modeladapter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/modeladapter"
	"github.com/germanamz/postcraft/pkg/modeladapter/usage"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, modeladapter.ParseRetryAfter("5"))
	assert.Zero(t, modeladapter.ParseRetryAfter(""))
	assert.Zero(t, modeladapter.ParseRetryAfter("soon"))
	assert.Zero(t, modeladapter.ParseRetryAfter("Mon, 02 Jan 2006 15:04:05 GMT"))
}

func TestPostJSON_AuthAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/run", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "postcraft", r.Header.Get("X-Client"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a := &modeladapter.ModelAdapter{
		BaseURL: srv.URL,
		Auth:    modeladapter.Auth{Key: "secret", Header: "x-goog-api-key"},
		Headers: map[string]string{"X-Client": "postcraft"},
	}

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, a.PostJSON(context.Background(), "/v1/run", map[string]string{"a": "b"}, &out))
	assert.True(t, out.OK)
}

func TestPostJSON_BearerDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	a := &modeladapter.ModelAdapter{BaseURL: srv.URL, Auth: modeladapter.Auth{Key: "k"}}
	require.NoError(t, a.PostJSON(context.Background(), "/", struct{}{}, nil))
}

func TestPostJSON_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("quota"))
	}))
	defer srv.Close()

	a := &modeladapter.ModelAdapter{BaseURL: srv.URL}
	err := a.PostJSON(context.Background(), "/", struct{}{}, nil)

	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2*time.Second, rle.RetryAfter)
	assert.Equal(t, "quota", rle.Body)
}

func TestPostJSON_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := &modeladapter.ModelAdapter{BaseURL: srv.URL}
	err := a.PostJSON(context.Background(), "/", struct{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestModelAdapter_CompleteStub(t *testing.T) {
	var a modeladapter.ModelAdapter
	_, err := a.Complete(context.Background(), chat.New(), nil)
	assert.Error(t, err)
}

// fakeCompleter is a Completer that also reports usage.
type fakeCompleter struct {
	tracker usage.Tracker
	handler func() (message.Message, error)
}

func (f *fakeCompleter) Complete(_ context.Context, _ *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	return f.handler()
}

func (f *fakeCompleter) UsageTracker() *usage.Tracker { return &f.tracker }

func TestRetryCompleter_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{handler: func() (message.Message, error) {
		if calls.Add(1) <= 2 {
			return message.Message{}, &modeladapter.RateLimitError{Body: "slow down"}
		}
		return message.NewText("", role.Assistant, "post"), nil
	}}

	var delays []time.Duration
	rc := modeladapter.NewRetryCompleter(fc, modeladapter.RetryOpts{MaxRetries: 3, BaseDelay: time.Second})
	rc.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	rc.SetRandFunc(func() float64 { return 0.5 })

	msg, err := rc.Complete(context.Background(), chat.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "post", msg.TextContent())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	assert.Same(t, &fc.tracker, rc.UsageTracker())
}

func TestRetryCompleter_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	fc := &fakeCompleter{handler: func() (message.Message, error) {
		if calls.Add(1) == 1 {
			return message.Message{}, &modeladapter.RateLimitError{RetryAfter: 30 * time.Second}
		}
		return message.Message{Role: role.Assistant}, nil
	}}

	var got time.Duration
	rc := modeladapter.NewRetryCompleter(fc, modeladapter.RetryOpts{BaseDelay: time.Millisecond})
	rc.SetSleepFunc(func(_ context.Context, d time.Duration) error { got = d; return nil })
	rc.SetRandFunc(func() float64 { return 0.5 })

	_, err := rc.Complete(context.Background(), chat.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, got)
}

func TestRetryCompleter_GivesUp(t *testing.T) {
	fc := &fakeCompleter{handler: func() (message.Message, error) {
		return message.Message{}, &modeladapter.RateLimitError{Body: "no"}
	}}

	rc := modeladapter.NewRetryCompleter(fc, modeladapter.RetryOpts{MaxRetries: 2})
	rc.SetSleepFunc(func(context.Context, time.Duration) error { return nil })

	_, err := rc.Complete(context.Background(), chat.New(), nil)
	var rle *modeladapter.RateLimitError
	assert.ErrorAs(t, err, &rle)
}

func TestRetryCompleter_NonRateLimitErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	fc := &fakeCompleter{handler: func() (message.Message, error) {
		calls.Add(1)
		return message.Message{}, boom
	}}

	rc := modeladapter.NewRetryCompleter(fc, modeladapter.RetryOpts{})
	_, err := rc.Complete(context.Background(), chat.New(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryCompleter_RPMThrottle(t *testing.T) {
	fc := &fakeCompleter{handler: func() (message.Message, error) {
		return message.Message{Role: role.Assistant}, nil
	}}

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rc := modeladapter.NewRetryCompleter(fc, modeladapter.RetryOpts{RPM: 2})
	rc.SetNowFunc(func() time.Time { return now })

	var slept time.Duration
	rc.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		slept += d
		now = now.Add(d)
		return nil
	})

	for range 3 {
		_, err := rc.Complete(context.Background(), chat.New(), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, time.Minute, slept)
}

func TestRetryCompleter_ContextCancelledWhileWaiting(t *testing.T) {
	fc := &fakeCompleter{handler: func() (message.Message, error) {
		return message.Message{}, &modeladapter.RateLimitError{}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	rc := modeladapter.NewRetryCompleter(fc, modeladapter.RetryOpts{})
	rc.SetSleepFunc(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := rc.Complete(ctx, chat.New(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
