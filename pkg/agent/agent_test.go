package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter returns preconfigured replies and records what it saw.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []message.Message
	index   int
	tools   [][]string
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	s.tools = append(s.tools, names)
	s.prompts = append(s.prompts, c.SystemPrompt())

	if s.index >= len(s.replies) {
		return message.Message{}, errors.New("no more replies")
	}
	reply := s.replies[s.index]
	s.index++
	return reply, nil
}

func hashtagBox() *toolbox.ToolBox {
	return toolbox.New(toolbox.Tool{
		Name:        "generate_networking_hashtags",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return NameFromContext(ctx) + ":" + string(input), nil
		},
	})
}

var architect = Identity{
	Name:        "Content Architect",
	Role:        "Designs networking-focused LinkedIn content",
	Description: "LinkedIn content architect.",
	Instructions: []string{
		"You are a LinkedIn content architect.",
		"",
		"Content Structure Guidelines:",
	},
}

func TestSystemPrompt(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	a := New(architect, &scriptedCompleter{}, Options{AddDatetime: true, Now: func() time.Time { return now }})

	prompt := a.SystemPrompt()

	assert.Contains(t, prompt, "You are Content Architect.\n")
	assert.Contains(t, prompt, "Your role: Designs networking-focused LinkedIn content\n")
	assert.Contains(t, prompt, "LinkedIn content architect.")
	assert.Contains(t, prompt, "## Instructions\n\n- You are a LinkedIn content architect.\n\n- Content Structure Guidelines:\n")
	assert.Contains(t, prompt, "The current time is Monday, October 19, 2026 09:30 UTC.")

	plain := New(Identity{Name: "bot"}, &scriptedCompleter{}, Options{})
	assert.Equal(t, "You are bot.\n", plain.SystemPrompt())
}

func TestRun_NoToolCalls(t *testing.T) {
	c := &scriptedCompleter{replies: []message.Message{message.NewText("", role.Assistant, "Post drafted.")}}
	a := New(architect, c, Options{})

	reply, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Post drafted.", reply.TextContent())
	assert.Equal(t, "Content Architect", reply.Sender)
	assert.Equal(t, 2, a.Chat().Len())
	assert.NotEmpty(t, c.prompts[0])
}

func TestRun_ToolLoop(t *testing.T) {
	c := &scriptedCompleter{replies: []message.Message{
		message.New("", role.Assistant,
			content.ToolCall{ID: "c1", Name: "generate_networking_hashtags", Arguments: `{"industry":"ai"}`},
			content.ToolCall{ID: "c2", Name: "missing_tool"},
		),
		message.NewText("", role.Assistant, "Done."),
	}}

	var observed []content.ToolResult
	a := New(architect, c, Options{
		OnToolCall: func(_ context.Context, agent string, _ content.ToolCall, res content.ToolResult) {
			assert.Equal(t, "Content Architect", agent)
			observed = append(observed, res)
		},
	})
	a.AddToolBoxes(hashtagBox(), hashtagBox())

	reply, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Done.", reply.TextContent())

	assert.Equal(t, []string{"generate_networking_hashtags"}, c.tools[0])

	require.Len(t, observed, 2)
	assert.Equal(t, `Content Architect:{"industry":"ai"}`, observed[0].Content)
	assert.False(t, observed[0].IsError)
	assert.True(t, observed[1].IsError)
	assert.Equal(t, "tool not found: missing_tool", observed[1].Content)

	// system, tool-call reply, 2 results, final reply
	assert.Equal(t, 5, a.Chat().Len())
}

func TestRun_MaxIterations(t *testing.T) {
	loop := message.New("", role.Assistant, content.ToolCall{ID: "c", Name: "generate_networking_hashtags", Arguments: `{}`})
	c := &scriptedCompleter{replies: []message.Message{loop, loop, loop}}

	a := New(architect, c, Options{MaxIterations: 2})
	a.AddToolBoxes(hashtagBox())

	_, err := a.Run(context.Background())
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 2, c.index)
}

func TestRun_CompleterError(t *testing.T) {
	a := New(architect, &scriptedCompleter{}, Options{})

	_, err := a.Run(context.Background())
	require.EqualError(t, err, "no more replies")
}

func TestInit_Idempotent(t *testing.T) {
	a := New(architect, &scriptedCompleter{}, Options{})
	a.Init()
	a.Init()

	assert.Equal(t, 1, a.Chat().Len())
}

func TestNameFromContext(t *testing.T) {
	assert.Empty(t, NameFromContext(context.Background()))
	assert.Equal(t, "x", NameFromContext(WithName(context.Background(), "x")))
}
