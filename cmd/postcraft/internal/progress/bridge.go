package progress

import (
	"context"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/postcraft/cmd/postcraft/internal/format"
	"github.com/germanamz/postcraft/pkg/engine"
)

// toMsg converts an engine event into a model message, or nil.
func toMsg(ev engine.Event) tea.Msg {
	switch ev.Kind {
	case engine.EventAgentStart:
		return StartMsg{Agent: ev.Agent}
	case engine.EventAgentEnd:
		err, _ := ev.Data.(error)
		return EndMsg{Agent: ev.Agent, Duration: ev.Duration, Err: err}
	case engine.EventToolCall:
		if d, ok := ev.Data.(engine.ToolCallData); ok {
			return ToolMsg{Agent: ev.Agent, Tool: d.Tool, IsError: d.IsError}
		}
	case engine.EventSynthesisStart:
		return SynthesisMsg{}
	case engine.EventSynthesisEnd:
		return SynthesisMsg{Done: true, Duration: ev.Duration}
	}
	return nil
}

// Run shows the progress view on out while work runs. Engine events are
// forwarded to the view until work returns.
func Run[T any](ctx context.Context, events *engine.EventBus, title string, members []string, out io.Writer, work func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := events.Subscribe(64)
	p := tea.NewProgram(New(title, members, cancel), tea.WithOutput(out))

	// The forwarder only calls p.Send and exits when the subscription closes.
	var wg sync.WaitGroup
	wg.Go(func() {
		for ev := range sub.C {
			if msg := toMsg(ev); msg != nil {
				p.Send(msg)
			}
		}
	})

	var (
		res     T
		workErr error
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)

		res, workErr = work(ctx)

		events.Unsubscribe(sub)
		wg.Wait()
		p.Send(DoneMsg{Err: workErr})
	}()

	_, runErr := p.Run()
	if runErr != nil {
		cancel()
	}
	<-done

	if workErr == nil && runErr != nil {
		workErr = fmt.Errorf("progress: %w", runErr)
	}

	return res, workErr
}

// Log writes one plain line per engine event to w until the returned stop
// function is called.
func Log(events *engine.EventBus, w io.Writer) (stop func()) {
	sub := events.Subscribe(64,
		engine.EventAgentStart, engine.EventAgentEnd, engine.EventToolCall,
		engine.EventSynthesisStart, engine.EventSynthesisEnd)

	var wg sync.WaitGroup
	wg.Go(func() {
		for ev := range sub.C {
			if line := logLine(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	})

	return func() {
		events.Unsubscribe(sub)
		wg.Wait()
	}
}

func logLine(ev engine.Event) string {
	switch ev.Kind {
	case engine.EventAgentStart:
		return "→ " + ev.Agent
	case engine.EventAgentEnd:
		if err, ok := ev.Data.(error); ok {
			return fmt.Sprintf("✗ %s: %v", ev.Agent, err)
		}
		return fmt.Sprintf("✓ %s (%s)", ev.Agent, format.FmtDuration(ev.Duration))
	case engine.EventToolCall:
		if d, ok := ev.Data.(engine.ToolCallData); ok {
			return fmt.Sprintf("  └ %s", d.Tool)
		}
	case engine.EventSynthesisStart:
		return "→ Compiling the final post"
	case engine.EventSynthesisEnd:
		return fmt.Sprintf("✓ Final post (%s)", format.FmtDuration(ev.Duration))
	}
	return ""
}
