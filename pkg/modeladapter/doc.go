// Package modeladapter defines how the content team talks to a model.
//
// It contains:
//   - [Completer], the single method every provider implements
//   - [ModelAdapter], an embeddable base with HTTP helpers, auth and custom headers
//   - [RetryCompleter], a wrapper that throttles requests and retries HTTP 429 responses
//   - [github.com/germanamz/postcraft/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// Concrete adapters live in pkg/providers.
package modeladapter
