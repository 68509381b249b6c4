package models

// EventType is the discriminator of a protocol event
type EventType string

const (
	EventStart EventType = "start"
	EventChunk EventType = "chunk"
	EventError EventType = "error"
	EventEnd   EventType = "end"
)

// Event is one typed record of the reply stream.
//
//   - start: TopicID is the authoritative topic id
//   - chunk: Content is a fragment to append
//   - error: Content is the user-visible error text
//   - end:   History, when HasHistory is set, replaces the transcript
type Event struct {
	Type       EventType
	TopicID    string
	Content    string
	History    []Message
	HasHistory bool
}

// IsTerminal reports whether the event ends the stream
func (e Event) IsTerminal() bool {
	return e.Type == EventError || e.Type == EventEnd
}
