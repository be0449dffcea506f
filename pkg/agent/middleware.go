package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/germanamz/postcraft/pkg/chats/message"
)

// ErrEmptyAnswer is returned by NonEmpty when the final reply has no text.
var ErrEmptyAnswer = errors.New("agent: empty answer")

// Runner executes agent logic and returns the final message.
type Runner interface {
	Run(ctx context.Context) (message.Message, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context) (message.Message, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (message.Message, error) {
	return f(ctx)
}

// Middleware wraps a Runner.
type Middleware func(next Runner) Runner

// Timeout bounds a run with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next.Run(ctx)
		})
	}
}

// Recovery converts panics into errors.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (msg message.Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("agent panicked: %v", r)
				}
			}()

			return next.Run(ctx)
		})
	}
}

// Logger logs agent start, duration, and error.
func Logger(log *slog.Logger, name string) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			log.DebugContext(ctx, "agent started", "agent", name)
			start := time.Now()

			msg, err := next.Run(ctx)

			if err != nil {
				log.ErrorContext(ctx, "agent finished with error", "agent", name, "duration", time.Since(start), "error", err)
			} else {
				log.InfoContext(ctx, "agent finished", "agent", name, "duration", time.Since(start))
			}

			return msg, err
		})
	}
}

// OutputGuardrail validates the final message; a check error replaces it.
func OutputGuardrail(check func(message.Message) error) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			msg, err := next.Run(ctx)
			if err != nil {
				return msg, err
			}

			if err := check(msg); err != nil {
				return message.Message{}, err
			}

			return msg, nil
		})
	}
}

// NonEmpty rejects replies without text.
func NonEmpty(msg message.Message) error {
	if strings.TrimSpace(msg.TextContent()) == "" {
		return fmt.Errorf("%w from %s", ErrEmptyAnswer, msg.Sender)
	}
	return nil
}
