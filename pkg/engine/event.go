package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventRunStart       EventKind = "run_start"
	EventRunEnd         EventKind = "run_end"
	EventAgentStart     EventKind = "agent_start"
	EventAgentEnd       EventKind = "agent_end"
	EventToolCall       EventKind = "tool_call"
	EventSynthesisStart EventKind = "synthesis_start"
	EventSynthesisEnd   EventKind = "synthesis_end"
	EventError          EventKind = "error"
)

// Event is an immutable notification of engine activity. Data carries a
// ToolCallData for EventToolCall and the error for EventError.
type Event struct {
	Kind      EventKind
	RunID     string
	Agent     string
	Timestamp time.Time
	Duration  time.Duration
	Data      any
}

// ToolCallData describes a finished tool call.
type ToolCallData struct {
	Tool    string
	IsError bool
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event

	kinds   map[EventKind]struct{} // Empty means every kind.
	dropped atomic.Int64
}

// Dropped reports how many events were discarded because C was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) wants(k EventKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// EventBus fans run activity out to frontends. It is safe for concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber with a channel of bufSize. When kinds are
// given only those events are delivered. Callers must Unsubscribe.
func (b *EventBus) Subscribe(bufSize int, kinds ...EventKind) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel. Buffered
// events can still be drained.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers e without blocking. A full subscriber misses the event
// and its Dropped count grows; a generation run never waits on a frontend.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e.Kind) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
