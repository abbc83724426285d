package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/datachat/internal/session"
)

// sessionEventMsg carries one session event into the update loop.
// ok is false once the subscription is closed.
type sessionEventMsg struct {
	event session.Event
	ok    bool
}

// sendDoneMsg reports the end of a SendMessage call.
type sendDoneMsg struct {
	err error
}

// chatModel is the bubbletea model for the interactive chat.
// Finished messages are printed above the program; the view only holds the
// spinner and the input line.
type chatModel struct {
	session    *session.Session
	events     <-chan session.Event
	input      textinput.Model
	spinner    spinner.Model
	render     renderer
	generating bool
	printed    int
	quitting   bool
	err        error
}

func newChatModel(s *session.Session, events <-chan session.Event, r renderer) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask a question about your data..."
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	return chatModel{
		session: s,
		events:  events,
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		render:  r,
	}
}

// Init prints the greeting and starts listening for session events.
func (m chatModel) Init() tea.Cmd {
	greeting := m.render.style(m.render.theme.hintStyle(),
		fmt.Sprintf("Conversation %s. Type /quit to leave.", m.session.ConversationID()))
	return tea.Batch(
		tea.Println(greeting),
		waitForEvent(m.events),
	)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.input.SetWidth(msg.Width - 4)
		m.render = newRenderer(m.render.plain, msg.Width-4)
		return m, nil

	case sessionEventMsg:
		if !msg.ok {
			m.quitting = true
			return m, tea.Quit
		}
		return m.applyEvent(msg.event)

	case sendDoneMsg:
		// Blank and in-flight sends are rejected before any state change.
		if msg.err != nil && !errors.Is(msg.err, session.ErrBlankQuery) && !errors.Is(msg.err, session.ErrGenerating) {
			m.err = msg.err
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.generating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the current input. While a turn is in flight the input is kept
// so it can be sent once the answer arrives.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	query := m.input.Value()
	if isQuit(query) {
		m.quitting = true
		return m, tea.Quit
	}
	if strings.TrimSpace(query) == "" || m.generating {
		return m, nil
	}

	m.input.Reset()
	s := m.session
	return m, func() tea.Msg {
		return sendDoneMsg{err: s.SendMessage(context.Background(), query)}
	}
}

// applyEvent prints newly appended messages and tracks the generating flag.
// Printing goes by Count rather than the event payload so a dropped event
// never loses a message.
func (m chatModel) applyEvent(ev session.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.events)}

	if lines := m.pendingLines(ev.Count); len(lines) > 0 {
		m.printed = ev.Count
		cmds = append(cmds, tea.Println(strings.Join(lines, "\n\n")+"\n"))
	}

	if ev.Kind == session.EventState {
		wasGenerating := m.generating
		m.generating = ev.Generating
		if m.generating && !wasGenerating {
			cmds = append(cmds, m.spinner.Tick)
		}
	}

	return m, tea.Batch(cmds...)
}

// pendingLines renders the messages appended since the last print, up to count.
func (m chatModel) pendingLines(count int) []string {
	if count <= m.printed {
		return nil
	}
	msgs := m.session.Messages()
	if count > len(msgs) {
		count = len(msgs)
	}

	lines := make([]string, 0, count-m.printed)
	for _, msg := range msgs[m.printed:count] {
		lines = append(lines, m.render.message(msg))
	}
	return lines
}

// View renders the spinner and the input line.
func (m chatModel) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}

	var b strings.Builder
	if m.generating {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.render.style(m.render.theme.hintStyle(), "Thinking..."))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.render.style(m.render.theme.hintStyle(), "Enter to send, Ctrl+C to quit"))
	return tea.NewView(b.String())
}

// waitForEvent blocks on the next session event.
func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return sessionEventMsg{event: ev, ok: ok}
	}
}

// runChatUI runs the interactive chat until the user quits.
func runChatUI(s *session.Session) error {
	events, cancel := s.Subscribe()
	defer cancel()

	model := newChatModel(s, events, newRenderer(false, 0))
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}

	if m, ok := finalModel.(chatModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
