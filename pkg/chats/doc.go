// Package chats holds the conversation model shared by every agent in the
// content team.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/postcraft/pkg/chats/role]: who sent a message (system, user, assistant, tool)
//   - [github.com/germanamz/postcraft/pkg/chats/content]: message parts (text, generated image, tool call/result)
//   - [github.com/germanamz/postcraft/pkg/chats/message]: a sender, a role and its parts
//   - [github.com/germanamz/postcraft/pkg/chats/chat]: append-only conversation
//
// Nothing here talks to a model API; providers translate these types to and
// from their wire formats.
package chats
