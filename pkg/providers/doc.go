// Package providers groups the concrete LLM adapters. Each sub-package
// implements [github.com/germanamz/postcraft/pkg/modeladapter.Completer]:
//   - [github.com/germanamz/postcraft/pkg/providers/gemini]: Google Gemini generateContent, including image output
//   - [github.com/germanamz/postcraft/pkg/providers/openai]: OpenAI-compatible chat completions via openai-go
package providers
