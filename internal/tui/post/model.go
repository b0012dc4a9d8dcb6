// Package post provides the TUI phase that shows a generated post.
package post

import (
	"strings"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/tui/style"
	"github.com/alkime/voicepost/pkg/collections"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ShowMsg hands the phase the post to display.
type ShowMsg struct {
	Post *domain.Post
}

// Model displays one post in a scrollable viewport.
type Model struct {
	post     *domain.Post
	viewport viewport.Model
}

// New creates an empty post phase sized for the terminal.
func New(width, height int) *Model {
	vp := viewport.New(width, height)
	vp.Style = style.Viewport

	return &Model{viewport: vp}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMsg := teaMsg.(type) {
	case ShowMsg:
		m.post = typedMsg.Post
		m.viewport.SetContent(Render(m.post, m.viewport.Width-4))

		return m, nil

	case tea.WindowSizeMsg:
		m.viewport.Width = typedMsg.Width
		m.viewport.Height = max(typedMsg.Height-6, 5)

		if m.post != nil {
			m.viewport.SetContent(Render(m.post, m.viewport.Width-4))
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(teaMsg)

	return m, cmd
}

func (m *Model) View() string {
	if m.post == nil {
		return style.Subtitle.Render("No post")
	}

	var sb strings.Builder

	sb.WriteString(style.Success.Render("Draft saved"))
	sb.WriteString(" ")
	sb.WriteString(style.Muted.Render(string(m.post.Platform) + " " + m.post.ID.String()))
	sb.WriteString("\n\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(style.Help.Render("↑/↓ scroll  q quit"))

	return sb.String()
}

// Render lays a post out as hook, body, call to action and hashtags. Posts
// without structured fields fall back to their flat content.
func Render(p *domain.Post, width int) string {
	if !p.HasStructuredFields() {
		return wrap(p.Content, width)
	}

	var parts []string

	if p.Hook != "" {
		parts = append(parts, style.Title.Render(wrap(p.Hook, width)))
	}

	if p.Body != "" {
		parts = append(parts, wrap(p.Body, width))
	}

	if p.CallToAction != "" {
		parts = append(parts, style.Label.Render(wrap(p.CallToAction, width)))
	}

	tags := collections.Filter(p.Hashtags, func(tag string) bool { return strings.TrimSpace(tag) != "" })
	if len(tags) > 0 {
		rendered := collections.Apply(tags, func(tag string) string {
			return style.Bullet.Render("#" + tag)
		})
		parts = append(parts, strings.Join(rendered, " "))
	}

	return strings.Join(parts, "\n\n")
}

// wrap breaks text on spaces so no line exceeds width. Width below 20 is
// treated as unbounded.
func wrap(text string, width int) string {
	if width < 20 {
		return text
	}

	var out []string

	for _, para := range strings.Split(text, "\n") {
		var line strings.Builder

		for _, word := range strings.Fields(para) {
			if line.Len() > 0 && line.Len()+1+len(word) > width {
				out = append(out, line.String())
				line.Reset()
			}

			if line.Len() > 0 {
				line.WriteByte(' ')
			}

			line.WriteString(word)
		}

		out = append(out, line.String())
	}

	return strings.Join(out, "\n")
}
