package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/studychat/internal/conversation"
	"github.com/diogo/studychat/internal/history"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/render"
	"github.com/diogo/studychat/internal/stream"
)

// Backend is the topic surface the TUI needs besides sending
type Backend interface {
	ListTopics(ctx context.Context) ([]models.TopicInfo, error)
	CreateTopic(ctx context.Context, name string) (*models.Topic, error)
	GetTopic(ctx context.Context, topicID string) (*models.Topic, error)
	DeleteTopic(ctx context.Context, topicID string) (string, error)
	TriggerIngest(ctx context.Context) (string, error)
}

// Options configures the chat TUI
type Options struct {
	// Topic is a reference opened at startup; empty shows the topic list
	Topic  string
	Render render.Options
	Theme  string
	Logger *slog.Logger
}

// Message types for the TUI
type (
	topicsLoadedMsg struct {
		topics []models.TopicInfo
		show   bool
		err    error
	}
	topicOpenedMsg struct {
		topic *models.Topic
		err   error
	}
	topicDeletedMsg struct {
		id      string
		message string
		err     error
	}
	ingestMsg struct {
		message string
		err     error
	}
	// snapshotMsg carries the message list after a streamed change
	snapshotMsg struct {
		topicID  string
		messages []models.Message
		updates  <-chan tea.Msg
	}
	sendDoneMsg struct {
		topicID string
		result  stream.Result
		err     error
	}
)

// Model represents the TUI state
type Model struct {
	ctx        context.Context
	backend    Backend
	controller *conversation.Controller
	resolver   *history.Resolver
	renderOpts render.Options
	logger     *slog.Logger
	startRef   string

	// cancels holds the cancel func of each running send by topic
	cancels map[string]context.CancelFunc

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Conversation
	topicID   string
	topicName string
	messages  []models.Message
	streaming bool

	// Topic selector
	topics      []models.TopicInfo
	showTopics  bool
	topicCursor int

	ready  bool
	notice string
	err    error

	width  int
	height int
}

// NewModel creates a new chat TUI model
func NewModel(ctx context.Context, backend Backend, controller *conversation.Controller, opts Options) Model {
	if opts.Theme != "" {
		SetTheme(opts.Theme)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your study material, or type /help"
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	renderOpts := opts.Render
	if renderOpts.Style == "" {
		renderOpts = render.DefaultOptions()
	}

	return Model{
		ctx:        ctx,
		backend:    backend,
		controller: controller,
		resolver:   history.NewResolver(backend),
		renderOpts: renderOpts,
		logger:     logging.OrDiscard(opts.Logger),
		startRef:   strings.TrimSpace(opts.Topic),
		cancels:    make(map[string]context.CancelFunc),
		textarea:   ta,
		spinner:    s,
	}
}

// Init opens the startup topic or loads the topic list
func (m Model) Init() tea.Cmd {
	startup := m.loadTopicsCmd(true)
	if m.startRef != "" {
		startup = m.openCmd(m.startRef)
	}
	return tea.Batch(textarea.Blink, startup)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if m.showTopics {
			return m.updateTopicSelector(msg)
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.streaming {
				m.cancelActive()
				return m, nil
			}
			return m, tea.Quit

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") || input == "exit" || input == "quit" {
				return m.runCommand(input)
			}
			return m.submit(input)
		}

	case topicsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.topics = msg.topics
		if msg.show {
			if len(m.topics) == 0 {
				m.notice = "No topics yet. Type /new <name> to create one."
			} else {
				m.showTopics = true
				m.topicCursor = m.activeTopicIndex()
			}
		}

	case topicOpenedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.activate(msg.topic)
		m.notice = fmt.Sprintf("Opened %s", m.topicName)
		return m, m.loadTopicsCmd(false)

	case topicDeletedMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		if msg.id == m.topicID {
			m.activate(&models.Topic{})
		}
		m.notice = msg.message
		if m.notice == "" {
			m.notice = "Topic deleted."
		}
		return m, m.loadTopicsCmd(false)

	case ingestMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.notice = msg.message

	case snapshotMsg:
		if msg.topicID == m.topicID {
			m.messages = msg.messages
			m.refreshViewport()
		}
		return m, waitForUpdate(msg.updates)

	case sendDoneMsg:
		return m.finishSend(msg)

	case spinner.TickMsg:
		if m.streaming {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
			m.refreshViewport()
		}
	}

	if _, ok := msg.(tea.KeyMsg); ok {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 4
	inputHeight := 6
	statusHeight := 2
	vpHeight := height - headerHeight - inputHeight - statusHeight
	if vpHeight < 5 {
		vpHeight = 5
	}
	contentWidth := width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
	m.refreshViewport()
}

// submit starts streaming a reply for the active topic
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""
	if m.topicID == "" {
		m.notice = "No topic open. Use /open <ref> or /new <name> first."
		return m, nil
	}
	if m.streaming || m.controller.State().InFlight(m.topicID) {
		m.notice = "A reply is still streaming for this topic."
		return m, nil
	}
	m.streaming = true
	return m, tea.Batch(m.sendCmd(m.topicID, text), m.spinner.Tick)
}

// sendCmd runs the send in its own goroutine and forwards every update
// over a channel read by waitForUpdate.
func (m Model) sendCmd(topicID, text string) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[topicID] = cancel

	updates := make(chan tea.Msg)
	go func() {
		defer close(updates)
		defer cancel()

		forward := func(msg tea.Msg) {
			select {
			case updates <- msg:
			case <-m.ctx.Done():
			}
		}

		result, err := m.controller.Send(ctx, topicID, text, func(msgs []models.Message) {
			forward(snapshotMsg{topicID: topicID, messages: msgs, updates: updates})
		})
		forward(sendDoneMsg{topicID: topicID, result: result, err: err})
	}()
	return waitForUpdate(updates)
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) finishSend(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	delete(m.cancels, msg.topicID)

	if msg.err != nil {
		m.err = msg.err
	}
	state := m.controller.State()
	if msg.topicID == m.topicID {
		// The server may have bound the reply to another topic id.
		m.topicID = state.ActiveTopic()
		m.messages = state.Messages()
	}
	m.streaming = m.topicID != "" && state.InFlight(m.topicID)
	m.refreshViewport()
	m.viewport.GotoBottom()

	if msg.result.Degraded && !msg.result.Failed() {
		m.logger.Warn("reply completed without end event", "topic_id", msg.topicID)
	}
	return m, m.loadTopicsCmd(false)
}

func (m *Model) cancelActive() {
	if cancel, ok := m.cancels[m.topicID]; ok {
		cancel()
	}
}

func (m *Model) activate(topic *models.Topic) {
	state := m.controller.State()
	state.Activate(topic.ID, topic.Messages)

	m.topicID = topic.ID
	m.topicName = topic.Name
	m.messages = state.Messages()
	m.streaming = topic.ID != "" && state.InFlight(topic.ID)
	m.showTopics = false
	m.err = nil
	m.refreshViewport()
	m.viewport.GotoBottom()
}

func (m Model) activeTopicIndex() int {
	for i, t := range m.topics {
		if t.ID == m.topicID {
			return i
		}
	}
	return 0
}

func (m Model) loadTopicsCmd(show bool) tea.Cmd {
	return func() tea.Msg {
		topics, err := m.backend.ListTopics(m.ctx)
		return topicsLoadedMsg{topics: topics, show: show, err: err}
	}
}

func (m Model) openCmd(ref string) tea.Cmd {
	return func() tea.Msg {
		info, err := m.resolver.Resolve(m.ctx, ref)
		if err != nil {
			return topicOpenedMsg{err: err}
		}
		topic, err := m.backend.GetTopic(m.ctx, info.ID)
		return topicOpenedMsg{topic: topic, err: err}
	}
}

func (m Model) createCmd(name string) tea.Cmd {
	return func() tea.Msg {
		topic, err := m.backend.CreateTopic(m.ctx, name)
		return topicOpenedMsg{topic: topic, err: err}
	}
}

func (m Model) deleteCmd(topicID string) tea.Cmd {
	return func() tea.Msg {
		message, err := m.backend.DeleteTopic(m.ctx, topicID)
		return topicDeletedMsg{id: topicID, message: message, err: err}
	}
}

func (m Model) ingestCmd() tea.Cmd {
	return func() tea.Msg {
		message, err := m.backend.TriggerIngest(m.ctx)
		return ingestMsg{message: message, err: err}
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	contentWidth := m.width - 4
	var sections []string

	title := "No topic"
	if m.topicID != "" {
		title = m.topicName
		if title == "" {
			title = m.topicID
		}
	}
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("✦ studychat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(title),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	var body string
	switch {
	case m.showTopics:
		body = m.renderTopicSelector()
	case len(m.messages) == 0:
		body = m.renderWelcome()
	default:
		body = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(body))

	var input string
	if m.streaming {
		input = m.spinner.View() + loadingStyle.Render(" Streaming reply") + hintStyle.Render("  (Esc to cancel)")
	} else {
		input = lipgloss.JoinVertical(lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}
	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	subtitle := "Type a question below. /help lists commands."
	if m.topicID == "" {
		subtitle = "Open a topic with /open <ref> or create one with /new <name>."
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render("Study assistant"),
		"",
		welcomeStyle.Width(width).Render(subtitle),
	)

	topPadding := (m.viewport.Height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"/topics", "Topics"},
		{"Esc", "Cancel/Quit"},
		{"↑↓", "Scroll"},
	}

	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// refreshViewport redraws the message list into the viewport
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	if m.streaming {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderMessages() string {
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	opts := m.renderOpts.WithWidth(bubbleWidth - 4)

	for i, msg := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		switch {
		case msg.IsUser():
			content.WriteString(userLabelStyle.Render("⬤ You") + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(msg.Content))

		case msg.Error:
			content.WriteString(errorLabelStyle.Render("✗ Assistant") + "\n")
			content.WriteString(errorBubbleStyle.Width(bubbleWidth).Render(msg.Content))

		default:
			content.WriteString(assistantLabelStyle.Render("✦ Assistant") + "\n")
			body := msg.Content
			if body == "" {
				body = m.spinner.View()
			} else {
				body = render.Reply(body, opts)
			}
			content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(body))
		}
		content.WriteString("\n")
	}

	return content.String()
}

// Run starts the chat TUI and blocks until the user quits. Running sends
// are cancelled on exit.
func Run(ctx context.Context, backend Backend, controller *conversation.Controller, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(
		NewModel(ctx, backend, controller, opts),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
