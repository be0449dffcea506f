// Package agent provides the LLM agent type the networking team is built
// from. An agent has an identity (name, role, description, instructions), a
// completer, and toolboxes, and runs a ReAct loop: complete, execute the
// requested tool calls, repeat until the model answers without calling tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/modeladapter"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
)

// ErrMaxIterations is returned when the ReAct loop exceeds MaxIterations
// without the model producing a final answer.
var ErrMaxIterations = errors.New("agent: max iterations reached")

// Identity is who the agent is. It becomes the system prompt.
type Identity struct {
	Name         string
	Role         string
	Description  string
	Instructions []string
}

// ToolObserver is notified after every tool call the agent executes.
type ToolObserver func(ctx context.Context, agent string, call content.ToolCall, result content.ToolResult)

// Options configures an Agent.
type Options struct {
	MaxIterations int          // ReAct loop limit (0 = unlimited).
	Middleware    []Middleware // Applied around Run().
	AddDatetime   bool         // Append the current date and time to the system prompt.
	OnToolCall    ToolObserver
	Now           func() time.Time // Clock for AddDatetime; nil uses time.Now.
}

// Agent runs a ReAct loop over its private chat.
type Agent struct {
	id        Identity
	completer modeladapter.Completer
	chat      *chat.Chat
	toolboxes []*toolbox.ToolBox
	options   Options
}

// New creates an Agent with an empty chat.
func New(id Identity, completer modeladapter.Completer, opts Options) *Agent {
	return &Agent{
		id:        id,
		completer: completer,
		chat:      chat.New(),
		options:   opts,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.id.Name }

// Role returns the agent's role line.
func (a *Agent) Role() string { return a.id.Role }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.id.Description }

// Chat returns the agent's private chat.
func (a *Agent) Chat() *chat.Chat { return a.chat }

// AddToolBoxes adds toolboxes. Earlier toolboxes win on name clashes.
func (a *Agent) AddToolBoxes(tbs ...*toolbox.ToolBox) {
	a.toolboxes = append(a.toolboxes, tbs...)
}

// Tools returns the declarations of every tool the agent can call.
func (a *Agent) Tools() []toolbox.Tool {
	var tools []toolbox.Tool
	seen := map[string]bool{}
	for _, tb := range a.toolboxes {
		for _, t := range tb.Tools() {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			tools = append(tools, t)
		}
	}
	return tools
}

// Init appends the system prompt if the chat does not have one yet.
func (a *Agent) Init() {
	if a.chat.SystemPrompt() == "" {
		a.chat.Append(message.NewText(a.id.Name, role.System, a.SystemPrompt()))
	}
}

// Run executes the ReAct loop with middleware applied. The first middleware
// is outermost.
func (a *Agent) Run(ctx context.Context) (message.Message, error) {
	var runner Runner = RunnerFunc(a.run)

	for i := len(a.options.Middleware) - 1; i >= 0; i-- {
		runner = a.options.Middleware[i](runner)
	}

	return runner.Run(ctx)
}

func (a *Agent) run(ctx context.Context) (message.Message, error) {
	ctx = WithName(ctx, a.id.Name)

	a.Init()
	tools := a.Tools()

	for i := 0; a.options.MaxIterations == 0 || i < a.options.MaxIterations; i++ {
		reply, err := a.completer.Complete(ctx, a.chat, tools)
		if err != nil {
			return message.Message{}, err
		}

		reply.Sender = a.id.Name
		a.chat.Append(reply)

		calls := reply.ToolCalls()
		if len(calls) == 0 {
			return reply, nil
		}

		for _, tc := range calls {
			result := a.call(ctx, tc)
			if a.options.OnToolCall != nil {
				a.options.OnToolCall(ctx, a.id.Name, tc, result)
			}
			a.chat.Append(message.New(a.id.Name, role.Tool, result))
		}
	}

	return message.Message{}, ErrMaxIterations
}

func (a *Agent) call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	for _, tb := range a.toolboxes {
		if _, ok := tb.Get(tc.Name); ok {
			return tb.Call(ctx, tc)
		}
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Content:    fmt.Sprintf("tool not found: %s", tc.Name),
		IsError:    true,
	}
}

// SystemPrompt renders the agent's identity and instructions.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.\n", a.id.Name)
	if a.id.Role != "" {
		fmt.Fprintf(&b, "Your role: %s\n", a.id.Role)
	}
	if a.id.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", a.id.Description)
	}

	if len(a.id.Instructions) > 0 {
		b.WriteString("\n## Instructions\n\n")
		b.WriteString(FormatInstructions(a.id.Instructions))
	}

	if a.options.AddDatetime {
		now := time.Now
		if a.options.Now != nil {
			now = a.options.Now
		}
		fmt.Fprintf(&b, "\nThe current time is %s.\n", now().Format("Monday, January 2, 2006 15:04 MST"))
	}

	return b.String()
}

// FormatInstructions renders instruction lines as a bullet list. Blank lines
// are kept as paragraph breaks.
func FormatInstructions(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "- %s\n", l)
	}
	return b.String()
}
