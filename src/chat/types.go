// Package chat owns conversations, their messages and the current-conversation pointer.
package chat

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultTitle names a conversation until its first user message arrives.
const DefaultTitle = "New Chat"

// titleLimit is the number of characters kept from the first user message.
const titleLimit = 50

// FileAttachment is a file sent along with a user message.
type FileAttachment struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MimeType   string `json:"type"`
	Size       int64  `json:"size"`
	Data       string `json:"data"` // base64 payload
	PreviewURL string `json:"preview,omitempty"`
}

type Message struct {
	ID          string           `json:"id"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	Model       string           `json:"model,omitempty"`
	Attachments []FileAttachment `json:"attachments,omitempty"`
}

type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	Model     string     `json:"model"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (m *Message) clone() *Message {
	c := *m
	c.Attachments = slices.Clone(m.Attachments)
	return &c
}

func (c *Conversation) clone() *Conversation {
	out := *c
	out.Messages = make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.clone()
	}
	return &out
}

func (c *Conversation) indexOf(messageID string) int {
	return slices.IndexFunc(c.Messages, func(m *Message) bool { return m.ID == messageID })
}

// DeriveTitle returns text cut to 50 characters, with "..." appended when cut.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

// prompt is the text sent upstream for a user message.
// Attachments are described by name since the completion endpoint takes text only.
func (m *Message) prompt() string {
	if len(m.Attachments) == 0 {
		return m.Content
	}
	var b strings.Builder
	b.WriteString(m.Content)
	for _, a := range m.Attachments {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Attached file: %s (%s, %d bytes)]", a.Name, a.MimeType, a.Size)
	}
	return b.String()
}
