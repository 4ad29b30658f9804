package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"study-assistant/internal/models"
)

const quitCommand = "q"

// Querier is the part of the RAG pipeline the chat loop needs.
type Querier interface {
	Query(ctx context.Context, handle models.IndexHandle, question string, k int) (*models.PromptResponse, error)
}

type answerMsg struct {
	resp *models.PromptResponse
	err  error
}

// Model is a chat session over a single index handle.
type Model struct {
	ctx      context.Context
	rag      Querier
	handle   models.IndexHandle
	topK     int
	title    string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	messages []models.ConversationMessage
	status   string
	waiting  bool
	ready    bool
}

func New(ctx context.Context, rag Querier, handle models.IndexHandle, topK int, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your study material (q to quit)"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		rag:      rag,
		handle:   handle,
		topK:     topK,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready.",
	}
}

// Run blocks until the user quits.
func Run(ctx context.Context, rag Querier, handle models.IndexHandle, topK int, title string) error {
	_, err := tea.NewProgram(New(ctx, rag, handle, topK, title), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Messages() []models.ConversationMessage { return m.messages }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			switch {
			case question == quitCommand:
				return m, tea.Quit
			case question == "" || m.waiting:
				return m, nil
			}
			m.input.Reset()
			m.messages = append(m.messages, models.ConversationMessage{Role: models.RoleUser, Content: question})
			m.waiting = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.ask(question), m.spinner.Tick)
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.messages = append(m.messages, models.ConversationMessage{Role: models.RoleAssistant, Content: msg.resp.Content})
		m.status = fmt.Sprintf("Answered from %d chunk(s).", len(msg.resp.Sources))
		if msg.resp.Context == "" {
			m.status = models.NoContextNotice
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.rag.Query(m.ctx, m.handle, question, m.topK)
		return answerMsg{resp: resp, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.messages, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Study Assistant")
	sub := subtleStyle.Render(m.title)
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + sub + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" + status
}

func renderTranscript(messages []models.ConversationMessage, width int) string {
	if len(messages) == 0 {
		return subtleStyle.Render("No questions yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(20, width-4))
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.Role == models.RoleUser {
			b.WriteString(userStyle.Render("You"))
		} else {
			b.WriteString(tutorStyle.Render("Tutor"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(msg.Content))
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	tutorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
