// Package team coordinates agents over a shared conversation. Each member
// keeps its own private chat; before a member runs, messages it has not seen
// are copied from the shared chat into its private chat with the User role,
// so every member sees what the others produced. A Coordinator decides who
// runs next, and an optional leader compiles the final answer.
package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/chat"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
	"golang.org/x/sync/errgroup"
)

// ErrNoMembers is returned when a Team is created without members.
var ErrNoMembers = errors.New("team: at least one member is required")

// Member is an agent the team can run. *agent.Agent implements it.
type Member interface {
	Name() string
	Description() string
	Chat() *chat.Chat
	Run(ctx context.Context) (message.Message, error)
}

// Selection is a coordinator decision.
type Selection struct {
	Members []int // Indices of members to run. Empty when Done is true.
	Done    bool
}

// Coordinator decides which member(s) act next.
type Coordinator interface {
	Next(ctx context.Context, shared *chat.Chat, members []Member) (Selection, error)
}

// EventKind identifies a team lifecycle event.
type EventKind string

const (
	MemberStart    EventKind = "member_start"
	MemberEnd      EventKind = "member_end"
	SynthesisStart EventKind = "synthesis_start"
	SynthesisEnd   EventKind = "synthesis_end"
)

// Event is passed to the Observer.
type Event struct {
	Kind     EventKind
	Member   string
	Index    int
	Duration time.Duration
	Err      error
}

// Observer receives team events. It may be called from several goroutines.
type Observer func(Event)

// Options configures a Team.
type Options struct {
	Coordinator Coordinator // nil runs members in sequence.
	Leader      *Leader     // nil returns the last member reply.
	Observer    Observer
}

// Team orchestrates members over a shared chat.
type Team struct {
	name        string
	members     []Member
	shared      *chat.Chat
	cursors     []int
	coordinator Coordinator
	leader      *Leader
	observe     Observer
}

// New creates a Team with an empty shared chat.
func New(name string, members []Member, opts Options) (*Team, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	coord := opts.Coordinator
	if coord == nil {
		coord = NewSequence()
	}

	observe := opts.Observer
	if observe == nil {
		observe = func(Event) {}
	}

	return &Team{
		name:        name,
		members:     members,
		shared:      chat.New(),
		cursors:     make([]int, len(members)),
		coordinator: coord,
		leader:      opts.Leader,
		observe:     observe,
	}, nil
}

// Name returns the team name.
func (t *Team) Name() string { return t.name }

// Shared returns the shared conversation.
func (t *Team) Shared() *chat.Chat { return t.shared }

// Run posts prompt to the shared chat and runs the coordination loop until
// the coordinator is done. The leader's synthesis, or the last shared
// message, is returned.
func (t *Team) Run(ctx context.Context, prompt string) (message.Message, error) {
	t.shared.Append(message.NewText("user", role.User, prompt))

	for {
		sel, err := t.coordinator.Next(ctx, t.shared, t.members)
		if err != nil {
			return message.Message{}, fmt.Errorf("team: coordinator: %w", err)
		}

		if sel.Done {
			break
		}

		// A member owns one private chat, so it may run only once per selection.
		seen := make(map[int]struct{}, len(sel.Members))
		for _, idx := range sel.Members {
			if idx < 0 || idx >= len(t.members) {
				return message.Message{}, fmt.Errorf("team: coordinator returned invalid member index %d", idx)
			}
			if _, dup := seen[idx]; dup {
				return message.Message{}, fmt.Errorf("team: coordinator selected member %d more than once", idx)
			}
			seen[idx] = struct{}{}
		}

		if err := t.runMembers(ctx, sel.Members); err != nil {
			return message.Message{}, err
		}
	}

	if t.leader != nil {
		t.observe(Event{Kind: SynthesisStart, Member: t.name, Index: -1})
		start := time.Now()

		reply, err := t.leader.Synthesize(ctx, t.shared, t.members)
		t.observe(Event{Kind: SynthesisEnd, Member: t.name, Index: -1, Duration: time.Since(start), Err: err})
		if err != nil {
			return message.Message{}, fmt.Errorf("team: leader: %w", err)
		}

		reply.Sender = t.name
		t.shared.Append(reply)

		return reply, nil
	}

	last, _ := t.shared.Last()
	return last, nil
}

// runMembers syncs and runs the selected members concurrently. Replies are
// appended in selection order; the first failure cancels the others.
func (t *Team) runMembers(ctx context.Context, indices []int) error {
	for _, idx := range indices {
		t.sync(idx)
	}

	replies := make([]message.Message, len(indices))
	g, gctx := errgroup.WithContext(ctx)

	for i, idx := range indices {
		m := t.members[idx]
		g.Go(func() error {
			t.observe(Event{Kind: MemberStart, Member: m.Name(), Index: idx})
			start := time.Now()

			reply, err := m.Run(gctx)
			t.observe(Event{Kind: MemberEnd, Member: m.Name(), Index: idx, Duration: time.Since(start), Err: err})
			if err != nil {
				return fmt.Errorf("team: member %q: %w", m.Name(), err)
			}

			replies[i] = reply
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	t.shared.Append(replies...)

	return nil
}

// sync copies unseen shared messages into a member's private chat as User
// messages, skipping the member's own.
func (t *Team) sync(idx int) {
	m := t.members[idx]
	unseen := t.shared.Since(t.cursors[idx])

	for _, msg := range unseen {
		if msg.Sender == m.Name() {
			continue
		}

		m.Chat().Append(message.Message{
			Sender:   msg.Sender,
			Role:     role.User,
			Parts:    attribute(msg),
			Metadata: msg.Metadata,
		})
	}

	t.cursors[idx] += len(unseen)
}

// attribute prefixes another member's reply with its name so the reader
// knows who said it.
func attribute(msg message.Message) []content.Part {
	if msg.Sender == "" || msg.Sender == "user" || msg.Role != role.Assistant {
		return msg.Parts
	}

	parts := make([]content.Part, 0, len(msg.Parts)+1)
	parts = append(parts, content.Text{Text: "[" + msg.Sender + "]\n"})
	return append(parts, msg.Parts...)
}
