// Package conversation holds the message list of the active topic and applies
// streamed replies to it.
package conversation

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/stream"
)

// Pending identifies one accepted send and its placeholder message
type Pending struct {
	ID      string
	TopicID string

	epoch uint64
	index int
}

type entry struct {
	msg       models.Message
	pendingID string
}

// State owns the ordered message list of the active topic.
// All methods are safe for concurrent use.
type State struct {
	mu       sync.Mutex
	topicID  string
	epoch    uint64
	entries  []entry
	inFlight map[string]*Pending
	logger   *slog.Logger
}

// NewState creates a State with no active topic
func NewState(logger *slog.Logger) *State {
	return &State{
		inFlight: make(map[string]*Pending),
		logger:   logging.OrDiscard(logger),
	}
}

// Activate makes topicID the active conversation with the given transcript.
// Pending sends of the previous conversation stop applying to the list.
func (s *State) Activate(topicID string, messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.topicID = topicID
	s.entries = make([]entry, 0, len(messages))
	for _, m := range messages {
		s.entries = append(s.entries, entry{msg: m})
	}
}

// ActiveTopic returns the id of the active conversation
func (s *State) ActiveTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topicID
}

// Messages returns a copy of the active message list
func (s *State) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// InFlight reports whether a send is pending for topicID, active or not
func (s *State) InFlight(topicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[topicID]
	return ok
}

// Submit appends the user message and an empty assistant placeholder.
// Empty text, an inactive topic and a second send for a topic that is
// still streaming are rejected with a *ValidationError and change nothing.
func (s *State) Submit(topicID, text string) (*Pending, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierrors.NewValidationError(topicID, apierrors.ErrEmptyMessage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if topicID == "" || topicID != s.topicID {
		return nil, apierrors.NewValidationError(topicID, apierrors.ErrNoActiveTopic)
	}
	if _, busy := s.inFlight[topicID]; busy {
		return nil, apierrors.NewValidationError(topicID, apierrors.ErrSendInFlight)
	}

	p := &Pending{
		ID:      uuid.NewString(),
		TopicID: topicID,
		epoch:   s.epoch,
	}

	s.entries = append(s.entries,
		entry{msg: models.Message{Role: models.RoleUser, Content: text}},
		entry{msg: models.Message{Role: models.RoleAssistant}, pendingID: p.ID},
	)
	p.index = len(s.entries) - 1
	s.inFlight[topicID] = p

	return p, nil
}

// OnStart rebinds p when the server reports a different topic id.
func (s *State) OnStart(p *Pending, topicID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topicID == "" || topicID == p.TopicID {
		return
	}

	if s.inFlight[p.TopicID] == p {
		delete(s.inFlight, p.TopicID)
		s.inFlight[topicID] = p
	}
	if s.isCurrentLocked(p) {
		s.topicID = topicID
	}

	s.logger.Debug("topic rebound by server", "from", p.TopicID, "to", topicID)
	p.TopicID = topicID
}

// OnProgress replaces the placeholder content with the accumulated text.
// It reports false, changing nothing, when p's placeholder is no longer the
// trailing message of the active conversation.
func (s *State) OnProgress(p *Pending, accumulated string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(p) {
		s.logger.Debug("dropping stale progress", "pending_id", p.ID, "topic_id", p.TopicID)
		return false
	}
	s.entries[p.index].msg.Content = accumulated
	return true
}

// OnSettled releases p and reconciles the list with the result: a
// non-empty history replaces the list while p's topic is active, an error
// turns the placeholder into an error-tagged message, anything else leaves
// the final text in it. It reports whether the active list changed.
func (s *State) OnSettled(p *Pending, r stream.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[p.TopicID] == p {
		delete(s.inFlight, p.TopicID)
	}

	// A server history is the whole transcript, so it applies whenever the
	// topic is active even if the placeholder was dropped by a re-activation.
	if r.HasHistory && len(r.History) > 0 && p.TopicID == s.topicID {
		s.entries = make([]entry, 0, len(r.History))
		for _, m := range r.History {
			s.entries = append(s.entries, entry{msg: m})
		}
		return true
	}

	if !s.isCurrentLocked(p) {
		s.logger.Debug("discarding settlement of inactive conversation",
			"pending_id", p.ID, "topic_id", p.TopicID, "phase", r.Phase.String())
		return false
	}

	switch {
	case r.Err != nil:
		s.entries[p.index] = entry{msg: models.Message{
			Role:    models.RoleAssistant,
			Content: r.ErrorMessage(),
			Error:   true,
		}}
	default:
		s.entries[p.index] = entry{msg: models.Message{
			Role:    models.RoleAssistant,
			Content: r.Content,
		}}
	}
	return true
}

// isCurrentLocked reports whether p's placeholder is still the trailing
// message of the conversation it was submitted to. Callers hold s.mu.
func (s *State) isCurrentLocked(p *Pending) bool {
	if p == nil || p.epoch != s.epoch || p.TopicID != s.topicID {
		return false
	}
	if p.index != len(s.entries)-1 {
		return false
	}
	return s.entries[p.index].pendingID == p.ID
}
