// Package chat provides the append-only conversation container agents and the
// team share.
package chat

import (
	"github.com/germanamz/postcraft/pkg/chats/message"
	"github.com/germanamz/postcraft/pkg/chats/role"
)

// Chat is an append-only conversation. The zero value is ready to use.
// Chat is not safe for concurrent use; callers must synchronize externally.
type Chat struct {
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

// Append adds one or more messages to the conversation.
func (c *Chat) Append(msgs ...message.Message) {
	c.messages = append(c.messages, msgs...)
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	return len(c.messages)
}

// At returns the message at the given index. It panics if the index is out of
// range.
func (c *Chat) At(index int) message.Message {
	return c.messages[index]
}

// Last returns the most recent message, or false if the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a copy of all messages in the conversation.
func (c *Chat) Messages() []message.Message {
	cp := make([]message.Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// Since returns a copy of the messages from offset onwards. An offset past the
// end yields an empty slice.
func (c *Chat) Since(offset int) []message.Message {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(c.messages) {
		return nil
	}

	cp := make([]message.Message, len(c.messages)-offset)
	copy(cp, c.messages[offset:])
	return cp
}

// BySender returns all messages from the given sender.
func (c *Chat) BySender(sender string) []message.Message {
	var out []message.Message
	for _, m := range c.messages {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}

// SystemPrompt returns the text of the first system message, or "".
func (c *Chat) SystemPrompt() string {
	for _, m := range c.messages {
		if m.Role == role.System {
			return m.TextContent()
		}
	}
	return ""
}
