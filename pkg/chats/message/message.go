// Package message defines the Message type used in LLM conversations.
package message

import (
	"strings"

	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/chats/role"
)

// Message is a single entry in a conversation. It is a value type; Parts and
// Metadata are shared between copies.
type Message struct {
	Sender   string
	Role     role.Role
	Parts    []content.Part
	Metadata map[string]any
}

// New creates a message with the given sender, role, and content parts.
func New(sender string, r role.Role, parts ...content.Part) Message {
	return Message{
		Sender: sender,
		Role:   r,
		Parts:  parts,
	}
}

// NewText creates a message with a single Text part.
func NewText(sender string, r role.Role, text string) Message {
	return New(sender, r, content.Text{Text: text})
}

// TextContent concatenates the text of all Text parts in the message.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ToolCalls returns all ToolCall parts in the message.
func (m Message) ToolCalls() []content.ToolCall {
	var calls []content.ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(content.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Images returns all Image parts in the message.
func (m Message) Images() []content.Image {
	var imgs []content.Image
	for _, p := range m.Parts {
		if img, ok := p.(content.Image); ok {
			imgs = append(imgs, img)
		}
	}
	return imgs
}

// SetMeta sets a metadata key, allocating the map on first use.
func (m *Message) SetMeta(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// GetMeta retrieves a metadata value by key.
func (m Message) GetMeta(key string) (any, bool) {
	v, ok := m.Metadata[key]
	return v, ok
}
