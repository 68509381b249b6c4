package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/studychat/internal/history"
)

const helpText = `/topics          pick a topic from the list
/open <ref>      open a topic by index, name, id, @first or @last
/new [name]      create a topic and open it
/delete          delete the open topic
/ingest          ask the server to re-index the study material
/exit            quit`

// parseCommand splits "/open some topic" into "open" and "some topic"
func parseCommand(input string) (name, arg string) {
	input = strings.TrimSpace(input)
	if input == "exit" || input == "quit" {
		return input, ""
	}
	input = strings.TrimPrefix(input, "/")
	name, arg, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	m.err = nil
	m.notice = ""

	name, arg := parseCommand(input)
	switch name {
	case "exit", "quit", "q":
		return m, tea.Quit

	case "help", "?":
		m.notice = helpText

	case "topics", "list":
		return m, m.loadTopicsCmd(true)

	case "open":
		if arg == "" {
			m.notice = history.ListAliases()
			return m, nil
		}
		return m, m.openCmd(arg)

	case "new":
		return m, m.createCmd(arg)

	case "delete":
		if m.topicID == "" {
			m.notice = "No topic open."
			return m, nil
		}
		if m.streaming {
			m.notice = "Wait for the reply to finish before deleting this topic."
			return m, nil
		}
		return m, m.deleteCmd(m.topicID)

	case "ingest":
		m.notice = "Requesting ingestion..."
		return m, m.ingestCmd()

	default:
		m.notice = fmt.Sprintf("Unknown command /%s. Type /help for the list.", name)
	}
	return m, nil
}

// updateTopicSelector handles keys while the topic list is shown
func (m Model) updateTopicSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc", "q":
		m.showTopics = false

	case "up", "k":
		if len(m.topics) > 0 {
			m.topicCursor--
			if m.topicCursor < 0 {
				m.topicCursor = len(m.topics) - 1
			}
		}

	case "down", "j":
		if len(m.topics) > 0 {
			m.topicCursor++
			if m.topicCursor >= len(m.topics) {
				m.topicCursor = 0
			}
		}

	case "enter":
		if m.topicCursor < len(m.topics) {
			m.showTopics = false
			return m, m.openCmd(m.topics[m.topicCursor].ID)
		}
	}
	return m, nil
}

func (m Model) renderTopicSelector() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("Topics"))
	content.WriteString("\n\n")

	maxItems := m.viewport.Height - 4
	if maxItems < 3 {
		maxItems = 3
	}
	start := 0
	if m.topicCursor >= maxItems {
		start = m.topicCursor - maxItems + 1
	}
	end := min(start+maxItems, len(m.topics))

	if start > 0 {
		content.WriteString(hintStyle.Render("  ↑ more above") + "\n")
	}
	for i := start; i < end; i++ {
		t := m.topics[i]
		cursor := "  "
		name := t.Name
		if i == m.topicCursor {
			cursor = topicCursorStyle.Render("▸ ")
			name = topicActiveStyle.Render(name)
		}
		if t.ID == m.topicID {
			name += hintStyle.Render(" (open)")
		}
		fmt.Fprintf(&content, "%s%d. %s %s\n", cursor, i+1, name, hintStyle.Render(t.Preview))
	}
	if end < len(m.topics) {
		content.WriteString(hintStyle.Render("  ↓ more below") + "\n")
	}

	content.WriteString("\n")
	content.WriteString(statusKeyStyle.Render("↑↓") + statusDescStyle.Render(" Navigate") + "  │  " +
		statusKeyStyle.Render("Enter") + statusDescStyle.Render(" Open") + "  │  " +
		statusKeyStyle.Render("Esc") + statusDescStyle.Render(" Close"))
	return content.String()
}
