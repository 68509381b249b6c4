// Package tui provides the terminal user interface for studychat.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/studychat/internal/errors"
)

// Palette is a named set of TUI colors
type Palette struct {
	Border    lipgloss.Color
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Error     lipgloss.Color
	Success   lipgloss.Color
	Text      lipgloss.Color
	TextDim   lipgloss.Color
	TextMute  lipgloss.Color
}

// DefaultTheme is used when the configured theme is unknown
const DefaultTheme = "tokyonight"

var palettes = map[string]Palette{
	"tokyonight": {
		Border:    "#3b4261",
		Primary:   "#7aa2f7",
		Secondary: "#bb9af7",
		Accent:    "#7dcfff",
		Error:     "#f7768e",
		Success:   "#9ece6a",
		Text:      "#c0caf5",
		TextDim:   "#565f89",
		TextMute:  "#3b4261",
	},
	"catppuccin": {
		Border:    "#45475a",
		Primary:   "#89b4fa",
		Secondary: "#cba6f7",
		Accent:    "#94e2d5",
		Error:     "#f38ba8",
		Success:   "#a6e3a1",
		Text:      "#cdd6f4",
		TextDim:   "#7f849c",
		TextMute:  "#585b70",
	},
	"nord": {
		Border:    "#4c566a",
		Primary:   "#88c0d0",
		Secondary: "#b48ead",
		Accent:    "#8fbcbb",
		Error:     "#bf616a",
		Success:   "#a3be8c",
		Text:      "#eceff4",
		TextDim:   "#81a1c1",
		TextMute:  "#4c566a",
	},
	"light": {
		Border:    "#c0c0c0",
		Primary:   "#2e59a8",
		Secondary: "#7847bd",
		Accent:    "#0f7b8a",
		Error:     "#c4314b",
		Success:   "#3f7f1f",
		Text:      "#1f2328",
		TextDim:   "#57606a",
		TextMute:  "#8c959f",
	},
}

// Themes lists the available palette names
func Themes() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	colorPrimary  lipgloss.Color
	colorError    lipgloss.Color
	colorText     lipgloss.Color
	colorTextDim  lipgloss.Color
	colorTextMute lipgloss.Color
)

var (
	headerStyle          lipgloss.Style
	titleStyle           lipgloss.Style
	subtitleStyle        lipgloss.Style
	hintStyle            lipgloss.Style
	messagesAreaStyle    lipgloss.Style
	userBubbleStyle      lipgloss.Style
	userLabelStyle       lipgloss.Style
	assistantBubbleStyle lipgloss.Style
	assistantLabelStyle  lipgloss.Style
	errorBubbleStyle     lipgloss.Style
	errorLabelStyle      lipgloss.Style
	inputPanelStyle      lipgloss.Style
	inputLabelStyle      lipgloss.Style
	loadingStyle         lipgloss.Style
	statusBarStyle       lipgloss.Style
	statusKeyStyle       lipgloss.Style
	statusDescStyle      lipgloss.Style
	noticeStyle          lipgloss.Style
	errorStyle           lipgloss.Style
	welcomeStyle         lipgloss.Style
	welcomeTitleStyle    lipgloss.Style
	welcomeIconStyle     lipgloss.Style
	topicCursorStyle     lipgloss.Style
	topicActiveStyle     lipgloss.Style
)

func init() {
	SetTheme(DefaultTheme)
}

// SetTheme rebuilds all styles from the named palette. Unknown names fall
// back to DefaultTheme and report false.
func SetTheme(name string) bool {
	p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		p = palettes[DefaultTheme]
	}
	applyPalette(p)
	return ok
}

func applyPalette(p Palette) {
	colorPrimary = p.Primary
	colorError = p.Error
	colorText = p.Text
	colorTextDim = p.TextDim
	colorTextMute = p.TextMute

	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 2).
		MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(p.TextDim)

	hintStyle = lipgloss.NewStyle().
		Foreground(p.TextMute).
		Italic(true)

	messagesAreaStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(1)

	userBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Secondary).
		Padding(0, 1).
		MarginLeft(4)

	userLabelStyle = lipgloss.NewStyle().
		Foreground(p.Secondary).
		Bold(true).
		MarginLeft(4)

	assistantBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Primary).
		Foreground(p.Text).
		Padding(0, 1).
		MarginRight(4)

	assistantLabelStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)

	// Failed replies keep the assistant layout with a thick error border.
	errorBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(p.Error).
		Foreground(p.Error).
		Padding(0, 1).
		MarginRight(4)

	errorLabelStyle = lipgloss.NewStyle().
		Foreground(p.Error).
		Bold(true)

	inputPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1).
		MarginTop(1)

	inputLabelStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true).
		MarginRight(1)

	loadingStyle = lipgloss.NewStyle().
		Foreground(p.Accent).
		Bold(true)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(p.TextMute).
		MarginTop(1)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(p.TextDim).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(p.TextMute)

	noticeStyle = lipgloss.NewStyle().
		Foreground(p.Success).
		PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
		Foreground(p.Error).
		Bold(true)

	welcomeStyle = lipgloss.NewStyle().
		Foreground(p.TextDim).
		Align(lipgloss.Center)

	welcomeTitleStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true).
		Align(lipgloss.Center)

	welcomeIconStyle = lipgloss.NewStyle().
		Foreground(p.Accent).
		Align(lipgloss.Center)

	topicCursorStyle = lipgloss.NewStyle().
		Foreground(p.Accent)

	topicActiveStyle = lipgloss.NewStyle().
		Foreground(p.Accent).
		Bold(true)
}

// FormatError returns a styled error message with additional context
// from structured errors.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	errStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errStyle.Render(fmt.Sprintf("✗ %v", err)))

	if status := errors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}
	if endpoint := errors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}

	switch {
	case errors.IsNetworkError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Check that the server is running and server_url is correct"))
	case errors.IsTimeoutError(err):
		sb.WriteString(dimStyle.Render("\n  Hint: Request timed out. Raise request_timeout or try again"))
	case errors.IsNotFound(err):
		sb.WriteString(dimStyle.Render("\n  Hint: The topic may have been deleted. Use /topics to list them"))
	}

	return sb.String()
}
