package team

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/postcraft/pkg/agent"
	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"github.com/germanamz/postcraft/pkg/modeladapter"
)

// Leader compiles the team's final answer from the shared conversation.
type Leader struct {
	Completer       modeladapter.Completer
	Name            string
	Description     string
	Instructions    []string
	SuccessCriteria string
	Markdown        bool
	AddDatetime     bool
	Now             func() time.Time
}

// Synthesize asks the leader's model for the final answer.
func (l *Leader) Synthesize(ctx context.Context, shared *chat.Chat, members []Member) (message.Message, error) {
	c := chat.New(
		message.NewText(l.Name, role.System, l.SystemPrompt(members)),
		message.NewText("user", role.User, Transcript(shared)),
	)

	return l.Completer.Complete(ctx, c, nil)
}

// SystemPrompt renders the leader's instructions.
func (l *Leader) SystemPrompt(members []Member) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the leader of %s.\n", l.Name)
	if l.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", l.Description)
	}

	b.WriteString("\n## Team members\n\n")
	for _, m := range members {
		fmt.Fprintf(&b, "- %s", m.Name())
		if d := m.Description(); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		b.WriteString("\n")
	}

	if len(l.Instructions) > 0 {
		b.WriteString("\n## Instructions\n\n")
		b.WriteString(agent.FormatInstructions(l.Instructions))
	}

	if l.SuccessCriteria != "" {
		fmt.Fprintf(&b, "\n## Success criteria\n\n%s\n", l.SuccessCriteria)
	}

	if l.Markdown {
		b.WriteString("\nUse markdown to format your answer.\n")
	}

	if l.AddDatetime {
		now := time.Now
		if l.Now != nil {
			now = l.Now
		}
		fmt.Fprintf(&b, "\nThe current time is %s.\n", now().Format("Monday, January 2, 2006 15:04 MST"))
	}

	return b.String()
}

// Transcript renders the shared conversation for the leader: the original
// request followed by every member's contribution.
func Transcript(shared *chat.Chat) string {
	var b strings.Builder

	msgs := shared.Messages()
	if len(msgs) > 0 {
		fmt.Fprintf(&b, "Original request:\n%s\n", strings.TrimSpace(msgs[0].TextContent()))
	}

	if len(msgs) > 1 {
		b.WriteString("\nTeam member responses:\n")
		for _, m := range msgs[1:] {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", m.Sender, strings.TrimSpace(m.TextContent()))
		}
	}

	b.WriteString("\nUsing the members' work above, write the final response to the original request.")

	return b.String()
}
