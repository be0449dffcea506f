package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/modeladapter"
	"github.com/germanamz/postcraft/pkg/providers/openai"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *openai.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return openai.New(srv.URL+"/v1/", "test-key", "gpt-test")
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	return req
}

func completion(msg map[string]any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-test",
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestComplete_Text(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		req := decodeBody(t, r)
		assert.Equal(t, "gpt-test", req["model"])

		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "user", msgs[1].(map[string]any)["role"])

		writeJSON(w, completion(map[string]any{"role": "assistant", "content": "Hello!"}))
	})

	c := chat.New(
		message.NewText("", role.System, "Be brief."),
		message.NewText("user", role.User, "Hi"),
	)

	msg, err := adapter.Complete(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", msg.TextContent())

	last, ok := adapter.Usage.Last()
	require.True(t, ok)
	assert.Equal(t, 12, last.InputTokens)
	assert.Equal(t, 4, last.OutputTokens)
}

func TestComplete_ToolCalls(t *testing.T) {
	calls := 0
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		req := decodeBody(t, r)

		if calls == 1 {
			tools, _ := req["tools"].([]any)
			require.Len(t, tools, 1)
			fn := tools[0].(map[string]any)["function"].(map[string]any)
			assert.Equal(t, "create_networking_cta", fn["name"])

			writeJSON(w, completion(map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]any{{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": "create_networking_cta", "arguments": `{"content_type":"learning"}`},
				}},
			}))
			return
		}

		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 3)
		assistant := msgs[1].(map[string]any)
		assert.Equal(t, "assistant", assistant["role"])
		require.Len(t, assistant["tool_calls"], 1)

		tool := msgs[2].(map[string]any)
		assert.Equal(t, "tool", tool["role"])
		assert.Equal(t, "call_1", tool["tool_call_id"])

		writeJSON(w, completion(map[string]any{"role": "assistant", "content": "CTA added."}))
	})

	tools := []toolbox.Tool{{
		Name:        "create_networking_cta",
		Description: "CTA",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"content_type":{"type":"string"}}}`),
	}}

	c := chat.New(message.NewText("user", role.User, "Add a CTA"))

	msg, err := adapter.Complete(context.Background(), c, tools)
	require.NoError(t, err)

	tcs := msg.ToolCalls()
	require.Len(t, tcs, 1)
	assert.Equal(t, "call_1", tcs[0].ID)
	assert.Equal(t, "create_networking_cta", tcs[0].Name)

	c.Append(msg, message.New("tools", role.Tool, content.ToolResult{ToolCallID: "call_1", Content: "Comment below!"}))

	msg, err = adapter.Complete(context.Background(), c, tools)
	require.NoError(t, err)
	assert.Equal(t, "CTA added.", msg.TextContent())
}

func TestComplete_RateLimit(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("u", role.User, "hi")), nil)

	var rle *modeladapter.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "2s", rle.RetryAfter.String())
}

func TestComplete_EmptyChoices(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := completion(nil)
		resp["choices"] = []any{}
		writeJSON(w, resp)
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("u", role.User, "hi")), nil)
	assert.ErrorIs(t, err, openai.ErrEmptyChoices)
}

func TestComplete_InvalidSchema(t *testing.T) {
	adapter := newAdapter(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("request must not be sent")
	})

	tools := []toolbox.Tool{{Name: "bad", InputSchema: json.RawMessage(`[`)}}

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("u", role.User, "hi")), tools)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema of bad")
}
