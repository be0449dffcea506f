package agent

import "context"

type nameKey struct{}

// WithName returns a context carrying the running agent's name. Tools use it
// to attribute their work.
func WithName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, nameKey{}, name)
}

// NameFromContext returns the running agent's name, or "" outside an agent.
func NameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(nameKey{}).(string)
	return v
}
