package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/beymax11/chatstudio/src/chat"
	"github.com/beymax11/chatstudio/src/models"
	"github.com/beymax11/chatstudio/src/project"
	"github.com/beymax11/chatstudio/src/theme"
)

// titleWidth is the widest title shown in listings.
const titleWidth = 40

type renderer struct {
	w      io.Writer
	styles theme.Styles
	color  bool // highlight code blocks
}

func newRenderer(f *os.File) *renderer {
	width, _ := strconv.Atoi(os.Getenv("COLUMNS"))
	tty := term.IsTerminal(int(f.Fd()))
	if tty && width == 0 {
		width, _, _ = term.GetSize(int(f.Fd()))
	}
	return &renderer{w: f, styles: theme.NewStyles(width), color: tty}
}

func (r *renderer) message(m *chat.Message) {
	var header string
	switch m.Role {
	case chat.RoleUser:
		header = r.styles.User.Render("You")
	default:
		name := "Assistant"
		if model, ok := models.Lookup(m.Model); ok {
			name = model.Name
		}
		header = r.styles.Assistant.Render(name)
	}
	meta := r.styles.Muted.Render(fmt.Sprintf("%s  %s", shortID(m.ID), m.Timestamp.Local().Format(time.Kitchen)))
	fmt.Fprintf(r.w, "%s %s\n", header, meta)

	body := r.styles.Body
	if m.Role == chat.RoleAssistant && strings.HasPrefix(m.Content, "Error:") {
		body = body.Foreground(theme.CurrentTheme.Error)
	}
	content := m.Content
	if r.color && m.Role == chat.RoleAssistant {
		content = highlightCode(content)
	}
	fmt.Fprintln(r.w, body.Render(content))
	for _, a := range m.Attachments {
		fmt.Fprintln(r.w, r.styles.Muted.Render(fmt.Sprintf("  [%s, %s, %d bytes]", a.Name, a.MimeType, a.Size)))
	}
	fmt.Fprintln(r.w)
}

func (r *renderer) conversation(c *chat.Conversation) {
	fmt.Fprintf(r.w, "%s %s\n\n", r.styles.Title.Render(c.Title), r.styles.Muted.Render(shortID(c.ID)))
	if len(c.Messages) == 0 {
		fmt.Fprintln(r.w, r.styles.Muted.Render("(no messages yet)"))
		return
	}
	for _, m := range c.Messages {
		r.message(m)
	}
}

func (r *renderer) conversationList(convs []*chat.Conversation, currentID string, projects *project.Store) {
	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "#\tID\tTitle\tMessages\tModel\tProjects\tUpdated")
	for i, c := range convs {
		marker := strconv.Itoa(i + 1)
		if c.ID == currentID {
			marker = r.styles.Current.Render("*" + marker)
		}
		var names []string
		if projects != nil {
			for _, p := range projects.ProjectsFor(c.ID) {
				names = append(names, p.Name)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			marker, shortID(c.ID), ansi.Truncate(c.Title, titleWidth, "…"), len(c.Messages), c.Model,
			strings.Join(names, ","), c.UpdatedAt.Local().Format(time.DateTime))
	}
}

func (r *renderer) projectList(projects []*project.Project) {
	w := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tName\tConversations\tUpdated")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", shortID(p.ID), p.Name, len(p.ConversationIDs), p.UpdatedAt.Local().Format(time.DateTime))
	}
}

// edit prints a unified diff of an edited message.
func (r *renderer) edit(before, after string) {
	diff := udiff.Unified("before", "after", ensureNewline(before), ensureNewline(after))
	if diff == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		style := r.styles.Muted
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			style = r.styles.User
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			style = r.styles.Error
		}
		fmt.Fprintln(r.w, style.Render(line))
	}
	fmt.Fprintln(r.w)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// highlightCode colours fenced code blocks for a 256-colour terminal.
// Blocks that fail to highlight are left as they are.
func highlightCode(content string) string {
	var out, block strings.Builder
	var lang string
	inBlock := false

	for _, line := range strings.SplitAfter(content, "\n") {
		fence := strings.HasPrefix(strings.TrimSpace(line), "```")
		switch {
		case fence && !inBlock:
			inBlock = true
			lang = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
			block.Reset()
			out.WriteString(line)
		case fence && inBlock:
			inBlock = false
			var hl strings.Builder
			if err := quick.Highlight(&hl, block.String(), lang, "terminal256", "monokai"); err != nil {
				out.WriteString(block.String())
			} else {
				out.WriteString(hl.String())
			}
			out.WriteString(line)
		case inBlock:
			block.WriteString(line)
		default:
			out.WriteString(line)
		}
	}
	if inBlock {
		out.WriteString(block.String())
	}
	return out.String()
}

func (r *renderer) notice(format string, args ...any) {
	fmt.Fprintln(r.w, r.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

func (r *renderer) failure(err error) {
	fmt.Fprintln(r.w, r.styles.Error.Render("Error: "+err.Error()))
}
