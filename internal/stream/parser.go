package stream

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
)

// DataPrefix marks a frame as a data record
const DataPrefix = "data:"

// Parser converts frames into events
type Parser struct {
	logger    *slog.Logger
	malformed atomic.Int64
}

// NewParser creates a Parser. A nil logger discards diagnostics.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logging.OrDiscard(logger)}
}

// Malformed returns how many frames failed to parse
func (p *Parser) Malformed() int64 {
	return p.malformed.Load()
}

// Parse converts one frame into an event.
// Frames without the data prefix and empty keep-alive frames return
// (nil, nil). Malformed payloads return a *ParseError and are counted.
func (p *Parser) Parse(frame string) (*models.Event, error) {
	rest, ok := strings.CutPrefix(frame, DataPrefix)
	if !ok {
		return nil, nil
	}

	payload := strings.TrimSpace(rest)
	if payload == "" {
		return nil, nil
	}

	ev, err := parsePayload(payload)
	if err != nil {
		p.malformed.Add(1)
		p.logger.Debug("dropping malformed frame",
			"error", err,
			"frame", truncate(frame, 200))
		return nil, err
	}
	return ev, nil
}

func parsePayload(payload string) (*models.Event, error) {
	if !gjson.Valid(payload) {
		return nil, apierrors.NewParseError("invalid JSON payload", payload)
	}

	root := gjson.Parse(payload)
	if !root.IsObject() {
		return nil, apierrors.NewParseError("payload is not an object", payload)
	}

	typ := root.Get("type")
	if typ.Type != gjson.String {
		return nil, apierrors.NewParseError("missing event type", payload)
	}

	ev := &models.Event{Type: models.EventType(typ.String())}

	switch ev.Type {
	case models.EventStart:
		ev.TopicID = stringOrNumber(root.Get("topicId"))
	case models.EventChunk, models.EventError:
		ev.Content = root.Get("content").String()
	case models.EventEnd:
		history, ok, err := parseHistory(root.Get("history"))
		if err != nil {
			return nil, err
		}
		ev.History = history
		ev.HasHistory = ok
	default:
		return nil, apierrors.NewParseError("unknown event type "+typ.String(), payload)
	}

	return ev, nil
}

// parseHistory accepts the transcript either as an array or as a string
// holding the JSON-encoded array. Null and empty strings mean no history.
func parseHistory(h gjson.Result) ([]models.Message, bool, error) {
	if !h.Exists() || h.Type == gjson.Null {
		return nil, false, nil
	}

	raw := h.Raw
	if h.Type == gjson.String {
		inner := strings.TrimSpace(h.String())
		if inner == "" {
			return nil, false, nil
		}
		if !gjson.Valid(inner) {
			return nil, false, apierrors.NewParseError("history is not valid JSON", inner)
		}
		raw = inner
	}

	if !gjson.Parse(raw).IsArray() {
		return nil, false, apierrors.NewParseError("history is not an array", raw)
	}

	var msgs []models.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, false, apierrors.NewParseError("history entries: "+err.Error(), raw)
	}
	for i := range msgs {
		// Error is a local annotation and never comes from the server
		msgs[i].Error = false
	}
	return msgs, true, nil
}

func stringOrNumber(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.String()
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
