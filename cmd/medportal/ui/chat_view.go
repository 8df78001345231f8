package ui

import (
	"context"
	"errors"
	"strings"

	"medportal/internal/chat"
	"medportal/internal/transcript"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// chatView renders a chat.Session: transcript viewport, typing indicator and
// composer.
type chatView struct {
	styles   Styles
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	width    int
	// notice is a one-shot status line message picked up by the router.
	notice string
}

func newChatView(styles Styles, width, height int) chatView {
	ta := textarea.New()
	ta.Placeholder = "Ask the assistant... (Enter to send)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 2000
	ta.SetHeight(3)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	v := chatView{
		styles:   styles,
		viewport: viewport.New(width, 10),
		textarea: ta,
		spinner:  sp,
	}
	return v.resize(width, height)
}

func (v chatView) resize(width, height int) chatView {
	if width < 20 {
		width = 20
	}
	// composer (3) + border/padding (2) + typing line (1)
	vpHeight := height - 6
	if vpHeight < 3 {
		vpHeight = 3
	}
	v.viewport.Width = width
	v.viewport.Height = vpHeight
	v.textarea.SetWidth(width - 2)

	if width != v.width {
		v.width = width
		style := "light"
		if v.styles.Theme.IsDark {
			style = "dark"
		}
		v.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width-6),
		)
	}
	return v
}

func (v chatView) focus() chatView {
	v.textarea.Focus()
	return v
}

func (v chatView) blur() chatView {
	v.textarea.Blur()
	v.textarea.Reset()
	return v
}

func (v chatView) init() tea.Cmd {
	return tea.Batch(textarea.Blink, v.spinner.Tick)
}

// refresh re-renders the transcript and scrolls to the newest message.
func (v chatView) refresh(s *chat.Session) chatView {
	v.viewport.SetContent(v.renderTranscript(s.Transcript()))
	v.viewport.GotoBottom()
	return v
}

func (v chatView) update(msg tea.Msg, s *chat.Session, backend chat.Backend) (chatView, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			v.viewport, cmd = v.viewport.Update(msg)
			return v, cmd
		case "enter":
			s.Compose(v.textarea.Value())
			req, err := s.Begin()
			switch {
			case errors.Is(err, chat.ErrEmptyMessage):
				return v, nil
			case errors.Is(err, chat.ErrSendInFlight):
				v.notice = "Please wait for the reply."
				return v, nil
			case err != nil:
				v.notice = err.Error()
				return v, nil
			}
			v.textarea.Reset()
			v = v.refresh(s)
			return v, tea.Batch(sendCmd(backend, req), v.spinner.Tick)
		}
	}

	var cmd tea.Cmd
	v.textarea, cmd = v.textarea.Update(msg)
	s.Compose(v.textarea.Value())
	return v, cmd
}

func sendCmd(backend chat.Backend, req chat.Request) tea.Cmd {
	return func() tea.Msg {
		reply, err := backend.ChatQuery(context.Background(), req.Token, req.Body)
		return chatReplyMsg{req: req, reply: reply, err: err}
	}
}

func (v chatView) view(s *chat.Session) string {
	var sb strings.Builder
	sb.WriteString(v.viewport.View())
	sb.WriteString("\n")
	if s.Typing() {
		sb.WriteString(v.spinner.View() + v.styles.Muted.Render(" assistant is typing..."))
	}
	sb.WriteString("\n")
	sb.WriteString(v.textarea.View())
	return sb.String()
}

func (v chatView) renderTranscript(t transcript.Transcript) string {
	var sb strings.Builder
	for _, m := range t {
		switch m.Sender {
		case transcript.SenderSystem:
			sb.WriteString(v.styles.RenderDivider(m.Text, v.width-4))
		case transcript.SenderUser:
			sb.WriteString(v.styles.UserMessage.Render("You") + " " +
				v.styles.Timestamp.Render(m.Timestamp.Local().Format("15:04")) + "\n")
			sb.WriteString(v.styles.Body.Render(m.Text))
		default:
			sb.WriteString(v.styles.Bold.Render("Assistant") + " " +
				v.styles.Timestamp.Render(m.Timestamp.Local().Format("15:04")) + "\n")
			sb.WriteString(v.styles.BotMessage.Render(strings.TrimSpace(v.safeRenderMarkdown(m.Text))))
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// safeRenderMarkdown falls back to plain text when glamour fails or panics.
func (v chatView) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()
	if v.renderer != nil && content != "" {
		if rendered, err := v.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}
