package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/theme"
)

func TestHighlightCodeKeepsProse(t *testing.T) {
	content := "Here you go:\n```go\nfunc main() {}\n```\nDone."
	out := highlightCode(content)

	assert.True(t, strings.HasPrefix(out, "Here you go:\n```go\n"))
	assert.True(t, strings.HasSuffix(out, "```\nDone."))
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "main")
}

func TestHighlightCodeUnterminatedBlock(t *testing.T) {
	content := "```\nplain text"
	assert.Equal(t, content, highlightCode(content))
}

func TestRenderEditDiff(t *testing.T) {
	var out bytes.Buffer
	r := &renderer{w: &out, styles: theme.NewStyles(0)}

	r.edit("what is go", "what is rust")
	assert.Contains(t, out.String(), "-what is go")
	assert.Contains(t, out.String(), "+what is rust")

	out.Reset()
	r.edit("same", "same")
	assert.Empty(t, out.String())
}

func TestRenderConversationList(t *testing.T) {
	var out bytes.Buffer
	r := &renderer{w: &out, styles: theme.NewStyles(0)}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	convs := []*chat.Conversation{
		{ID: "aaaaaaaa-1111", Title: strings.Repeat("long title ", 10), Model: "fast", UpdatedAt: now},
		{ID: "bbbbbbbb-2222", Title: "short", Model: "balanced", UpdatedAt: now},
	}
	r.conversationList(convs, "bbbbbbbb-2222", nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "aaaaaaaa")
	assert.Contains(t, lines[1], "…")
	assert.NotContains(t, lines[1], "-1111")
	assert.Contains(t, lines[2], "*2")
}
