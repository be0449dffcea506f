// Package content defines the parts a message is made of.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// Image is an image part. Generated visuals carry their bytes in Data and the
// file they were written to in Path; remote images only set URL.
type Image struct {
	URL       string
	Path      string
	Data      []byte
	MediaType string
}

func (i Image) PartKind() string { return "image" }

// ToolCall is an assistant's request to invoke a tool. Arguments holds the raw
// JSON string. Metadata carries provider-specific opaque data (Gemini thought
// signatures) that must survive the round trip through history.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Metadata  map[string]string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult holds the output of a tool invocation.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }
