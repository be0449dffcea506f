package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/postcraft/pkg/agent"
	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/modeladapter"
)

// ErrMaxRounds is returned when a coordinator exceeds its round limit.
var ErrMaxRounds = errors.New("team: max rounds reached")

// Sequence runs each member exactly once in order, then signals done.
type Sequence struct {
	next int
}

// NewSequence creates a Sequence coordinator.
func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Next(_ context.Context, _ *chat.Chat, members []Member) (Selection, error) {
	if s.next >= len(members) {
		return Selection{Done: true}, nil
	}

	idx := s.next
	s.next++

	return Selection{Members: []int{idx}}, nil
}

// LLMCoordinator lets a model pick the next member(s). It keeps a private
// chat for its own reasoning and shows the model a window of recent shared
// messages on every turn.
type LLMCoordinator struct {
	completer    modeladapter.Completer
	maxRounds    int
	instructions []string
	windowSize   int
	step         int
	chat         *chat.Chat
	seen         int
}

// NewLLMCoordinator creates an LLMCoordinator. maxRounds bounds the number of
// selections as a multiple of the member count (0 = unlimited). instructions
// describe the intended workflow.
func NewLLMCoordinator(completer modeladapter.Completer, maxRounds int, instructions []string) *LLMCoordinator {
	return &LLMCoordinator{
		completer:    completer,
		maxRounds:    maxRounds,
		instructions: instructions,
		windowSize:   20,
		chat:         chat.New(),
	}
}

type decision struct {
	Members []int `json:"members"`
	Done    bool  `json:"done"`
}

func (lc *LLMCoordinator) Next(ctx context.Context, shared *chat.Chat, members []Member) (Selection, error) {
	if lc.maxRounds > 0 && lc.step >= lc.maxRounds*len(members) {
		return Selection{}, ErrMaxRounds
	}

	if lc.chat.Len() == 0 {
		lc.chat.Append(message.NewText("", role.System, lc.systemPrompt(members)))
	}

	lc.appendContext(shared)

	d, err := lc.decide(ctx, members)
	if err != nil {
		// One retry with the parse error as feedback.
		lc.chat.Append(message.NewText("", role.User, fmt.Sprintf("Invalid response: %v. Please respond with ONLY a JSON object.", err)))

		d, err = lc.decide(ctx, members)
		if err != nil {
			return Selection{}, fmt.Errorf("llm coordinator: %w", err)
		}
	}

	lc.step++

	return Selection(d), nil
}

func (lc *LLMCoordinator) decide(ctx context.Context, members []Member) (decision, error) {
	reply, err := lc.completer.Complete(ctx, lc.chat, nil)
	if err != nil {
		return decision{}, err
	}

	lc.chat.Append(reply)

	var d decision
	if err := json.Unmarshal([]byte(stripCodeFences(reply.TextContent())), &d); err != nil {
		return decision{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if d.Done {
		d.Members = nil
		return d, nil
	}

	if len(d.Members) == 0 {
		return decision{}, errors.New("no members selected and done is false")
	}

	seen := make(map[int]struct{}, len(d.Members))
	for _, idx := range d.Members {
		if idx < 0 || idx >= len(members) {
			return decision{}, fmt.Errorf("member index %d out of range [0, %d)", idx, len(members))
		}
		if _, dup := seen[idx]; dup {
			return decision{}, fmt.Errorf("member index %d selected more than once", idx)
		}
		seen[idx] = struct{}{}
	}

	return d, nil
}

func (lc *LLMCoordinator) systemPrompt(members []Member) string {
	var b strings.Builder

	b.WriteString("You are a team coordinator. Based on the conversation, decide which team member(s) should act next.\n\nTeam members:\n")
	for i, m := range members {
		fmt.Fprintf(&b, "- [%d] %q", i, m.Name())
		if d := m.Description(); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		b.WriteString("\n")
	}

	if len(lc.instructions) > 0 {
		b.WriteString("\nTeam instructions:\n")
		b.WriteString(agent.FormatInstructions(lc.instructions))
	}

	b.WriteString("\nRespond with ONLY a JSON object (no markdown, no explanation):\n")
	b.WriteString(`{"members": [0], "done": false}`)
	b.WriteString("\n\n- \"members\": indices of the members to run next; several run concurrently\n")
	b.WriteString("- \"done\": true once the members' work is enough to write the final answer\n")

	return b.String()
}

// appendContext shows the coordinator the shared messages it has not seen,
// capped to the last windowSize.
func (lc *LLMCoordinator) appendContext(shared *chat.Chat) {
	total := shared.Len()
	if total <= lc.seen {
		return
	}

	start := max(lc.seen, total-lc.windowSize)
	lc.seen = total

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range shared.Since(start) {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Role, m.Sender, m.TextContent())
	}

	lc.chat.Append(message.NewText("", role.User, b.String()))
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}
