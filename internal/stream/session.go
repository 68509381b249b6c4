package stream

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
)

// Phase is the lifecycle position of a Session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
	PhaseStreaming
	PhaseErrored
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseStreaming:
		return "streaming"
	case PhaseErrored:
		return "errored"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the phase is settled
func (p Phase) IsTerminal() bool {
	return p == PhaseErrored || p == PhaseCompleted
}

// ProgressFunc receives the full accumulated reply after every chunk
type ProgressFunc func(accumulated string)

// Stats describes one consumed stream
type Stats struct {
	Bytes      int64
	Frames     int
	Events     int
	Malformed  int
	Chunks     int
	FirstChunk time.Duration // latency from Begin to the first chunk
	Elapsed    time.Duration
}

// Result is the settled outcome of a Session
type Result struct {
	Phase      Phase
	TopicID    string
	Content    string // accumulated reply text, partial when Err is set
	History    []models.Message
	HasHistory bool
	Err        error
	Degraded   bool // settled by end of input rather than an end event
	Stats      Stats
}

// Failed reports whether the send ended in error
func (r Result) Failed() bool {
	return r.Err != nil
}

// ErrorMessage returns the user-visible error text, or "" on success
func (r Result) ErrorMessage() string {
	return apierrors.UserMessage(r.Err)
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithProgress registers the progress listener
func WithProgress(fn ProgressFunc) SessionOption {
	return func(s *Session) {
		s.progress = fn
	}
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logging.OrDiscard(logger)
	}
}

// Session is the state machine of one send. It is created per send and
// never reused. Events are handled from a single goroutine; the accessors
// are safe to call from any goroutine.
type Session struct {
	mu       sync.Mutex
	phase    Phase
	topicID  string
	started  bool
	acc      strings.Builder
	stats    Stats
	began    time.Time
	result   Result
	settled  bool
	done     chan struct{}
	progress ProgressFunc
	logger   *slog.Logger
}

// NewSession creates an idle session
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		phase:  PhaseIdle,
		done:   make(chan struct{}),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin moves an idle session to Awaiting. It reports false if the
// session had already begun.
func (s *Session) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked()
}

func (s *Session) beginLocked() bool {
	if s.phase != PhaseIdle {
		return false
	}
	s.phase = PhaseAwaiting
	s.began = time.Now()
	return true
}

// Handle applies one event and reports whether the session is settled.
// Events after settlement are ignored. A chunk invokes the progress
// listener synchronously with the full accumulated text.
func (s *Session) Handle(ev *models.Event) bool {
	if ev == nil {
		return s.isSettled()
	}

	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		s.logger.Debug("ignoring event after settlement", "type", ev.Type)
		return true
	}
	s.beginLocked()
	s.stats.Events++

	switch ev.Type {
	case models.EventStart:
		if s.started || s.phase != PhaseAwaiting {
			s.mu.Unlock()
			s.logger.Debug("ignoring late or repeated start", "topic_id", ev.TopicID)
			return false
		}
		s.started = true
		s.topicID = ev.TopicID
		s.mu.Unlock()
		return false

	case models.EventChunk:
		s.acc.WriteString(ev.Content)
		s.phase = PhaseStreaming
		s.stats.Chunks++
		if s.stats.Chunks == 1 {
			s.stats.FirstChunk = time.Since(s.began)
		}
		text := s.acc.String()
		progress := s.progress
		s.mu.Unlock()
		if progress != nil {
			progress(text)
		}
		return false

	case models.EventError:
		msg := ev.Content
		if strings.TrimSpace(msg) == "" {
			msg = "The server reported an error."
		}
		err := apierrors.NewStreamError(msg, s.acc.String())
		s.settleLocked(PhaseErrored, err, nil, false, false)
		s.mu.Unlock()
		s.logger.Warn("stream error event", "topic_id", s.TopicID(), "error", msg)
		return true

	case models.EventEnd:
		s.settleLocked(PhaseCompleted, nil, ev.History, ev.HasHistory, false)
		s.mu.Unlock()
		return true

	default:
		s.mu.Unlock()
		s.logger.Debug("ignoring unknown event", "type", ev.Type)
		return false
	}
}

// Finish handles end of input. Without a terminal event the session
// completes in degraded form with the accumulated text. A stream that
// ended before any chunk settles as an error with ErrEmptyStream.
func (s *Session) Finish() {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.beginLocked()
	chunks := s.stats.Chunks
	if chunks == 0 {
		s.settleLocked(PhaseErrored, apierrors.ErrEmptyStream, nil, false, true)
	} else {
		s.settleLocked(PhaseCompleted, nil, nil, false, true)
	}
	topicID := s.topicID
	s.mu.Unlock()

	if chunks == 0 {
		s.logger.Warn("stream ended before any reply", "topic_id", topicID)
	} else {
		s.logger.Warn("stream ended without end event", "topic_id", topicID, "chunks", chunks)
	}
}

// Fail settles the session as errored with err. It is a no-op once settled.
func (s *Session) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.beginLocked()
	s.settleLocked(PhaseErrored, err, nil, false, false)
	s.mu.Unlock()
	s.logger.Warn("stream failed", "error", err)
}

// settleLocked writes the single result. Callers hold s.mu.
func (s *Session) settleLocked(phase Phase, err error, history []models.Message, hasHistory, degraded bool) {
	if s.settled {
		return
	}
	s.settled = true
	s.phase = phase
	s.stats.Elapsed = time.Since(s.began)
	s.result = Result{
		Phase:      phase,
		TopicID:    s.topicID,
		Content:    s.acc.String(),
		History:    history,
		HasHistory: hasHistory,
		Err:        err,
		Degraded:   degraded,
		Stats:      s.stats,
	}
	close(s.done)
}

// Result returns the settled result. ok is false until the session settles.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.settled
}

// Done is closed when the session settles
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Phase returns the current phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Accumulated returns the reply text received so far
func (s *Session) Accumulated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.String()
}

// TopicID returns the topic id announced by the start event, if any
func (s *Session) TopicID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topicID
}

// Chunks returns the number of chunks handled
func (s *Session) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Chunks
}

func (s *Session) isSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

func (s *Session) recordRead(n int) {
	s.mu.Lock()
	s.stats.Bytes += int64(n)
	s.mu.Unlock()
}

func (s *Session) recordFrame() {
	s.mu.Lock()
	s.stats.Frames++
	s.mu.Unlock()
}

func (s *Session) recordMalformed() {
	s.mu.Lock()
	s.stats.Malformed++
	s.mu.Unlock()
}
