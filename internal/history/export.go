package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/diogo/studychat/internal/models"
)

// ExportFormat represents the format for exporting topics
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat parses a user supplied format name
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use markdown or json)", s)
	}
}

// FormatFromPath picks the format from a file extension, defaulting to markdown
func FormatFromPath(path string) ExportFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ExportFormatJSON
	}
	return ExportFormatMarkdown
}

// Export renders topic in the given format
func Export(topic *models.Topic, format ExportFormat, exportedAt time.Time) ([]byte, error) {
	switch format {
	case ExportFormatJSON:
		return ExportToJSON(topic, exportedAt)
	case ExportFormatMarkdown, "":
		return []byte(ExportToMarkdown(topic, exportedAt)), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// ExportToMarkdown exports a topic transcript to Markdown
func ExportToMarkdown(topic *models.Topic, exportedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(topic.Name)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "**Topic:** %s\n", topic.ID)
	fmt.Fprintf(&sb, "**Exported:** %s\n", exportedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Messages:** %d\n\n---\n\n", len(topic.Messages))

	for i, msg := range topic.Messages {
		role := "You"
		if msg.IsAssistant() {
			role = "Assistant"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		sb.WriteString("\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(topic.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

type exportTopic struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	ExportedAt time.Time        `json:"exported_at"`
	Messages   []models.Message `json:"messages"`
}

// ExportToJSON exports a topic transcript to indented JSON
func ExportToJSON(topic *models.Topic, exportedAt time.Time) ([]byte, error) {
	messages := topic.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	return json.MarshalIndent(exportTopic{
		ID:         topic.ID,
		Name:       topic.Name,
		ExportedAt: exportedAt.UTC(),
		Messages:   messages,
	}, "", "  ")
}
