package toolbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/germanamz/postcraft/pkg/tools/schema"
)

// Handler executes a tool with the given JSON input and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool represents an executable tool with a name, description, JSON Schema, and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Func builds a Tool from a typed function. The input schema is reflected
// from In, the raw arguments are decoded into In, and the result is returned
// as-is when it is a string or JSON-encoded otherwise.
func Func[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: schema.For[In](),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in In
			if len(input) > 0 {
				if err := json.Unmarshal(input, &in); err != nil {
					return "", fmt.Errorf("%s: invalid input: %w", name, err)
				}
			}

			out, err := fn(ctx, in)
			if err != nil {
				return "", err
			}

			if s, ok := any(out).(string); ok {
				return s, nil
			}

			data, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("%s: encode result: %w", name, err)
			}

			return string(data), nil
		},
	}
}
