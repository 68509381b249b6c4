package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/models"
)

func start(id string) *models.Event {
	return &models.Event{Type: models.EventStart, TopicID: id}
}

func chunk(s string) *models.Event {
	return &models.Event{Type: models.EventChunk, Content: s}
}

func errorEvent(s string) *models.Event {
	return &models.Event{Type: models.EventError, Content: s}
}

func end(history ...models.Message) *models.Event {
	return &models.Event{Type: models.EventEnd, History: history, HasHistory: len(history) > 0}
}

func settled(t *testing.T, s *Session) Result {
	t.Helper()
	select {
	case <-s.Done():
	default:
		t.Fatal("session not settled")
	}
	r, ok := s.Result()
	require.True(t, ok)
	return r
}

func TestSessionHelloScenario(t *testing.T) {
	var progress []string
	s := NewSession(WithProgress(func(text string) {
		progress = append(progress, text)
	}))

	assert.Equal(t, PhaseIdle, s.Phase())
	require.True(t, s.Begin())
	assert.False(t, s.Begin())
	assert.Equal(t, PhaseAwaiting, s.Phase())

	assert.False(t, s.Handle(start("t1")))
	assert.Equal(t, PhaseAwaiting, s.Phase())
	assert.Equal(t, "t1", s.TopicID())

	assert.False(t, s.Handle(chunk("Hel")))
	assert.Equal(t, PhaseStreaming, s.Phase())
	assert.False(t, s.Handle(chunk("lo")))
	assert.True(t, s.Handle(end()))

	r := settled(t, s)
	assert.Equal(t, PhaseCompleted, r.Phase)
	assert.Equal(t, "Hello", r.Content)
	assert.Equal(t, "t1", r.TopicID)
	assert.False(t, r.HasHistory)
	assert.False(t, r.Degraded)
	assert.False(t, r.Failed())
	assert.Equal(t, []string{"Hel", "Hello"}, progress)
	assert.Equal(t, 2, r.Stats.Chunks)
}

func TestSessionErrorAfterChunk(t *testing.T) {
	s := NewSession()
	s.Begin()
	s.Handle(chunk("partial"))
	require.True(t, s.Handle(errorEvent("rate limited")))

	r := settled(t, s)
	assert.Equal(t, PhaseErrored, r.Phase)
	assert.Equal(t, "rate limited", r.ErrorMessage())
	assert.Equal(t, "partial", r.Content)
	assert.True(t, apierrors.IsStreamError(r.Err))
}

func TestSessionEmptyErrorEvent(t *testing.T) {
	s := NewSession()
	s.Handle(errorEvent("  "))

	r := settled(t, s)
	assert.Equal(t, "The server reported an error.", r.ErrorMessage())
}

func TestSessionSingleTerminalTransition(t *testing.T) {
	history := []models.Message{{Role: models.RoleUser, Content: "q"}}

	tests := []struct {
		name      string
		first     *models.Event
		then      []*models.Event
		wantPhase Phase
	}{
		{"end then error", end(), []*models.Event{errorEvent("late")}, PhaseCompleted},
		{"error then end", errorEvent("boom"), []*models.Event{end(history...)}, PhaseErrored},
		{"end twice", end(), []*models.Event{end(history...)}, PhaseCompleted},
		{"chunk after end", end(), []*models.Event{chunk("more")}, PhaseCompleted},
		{"start after error", errorEvent("boom"), []*models.Event{start("t9")}, PhaseErrored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			s := NewSession(WithProgress(func(string) { calls++ }))
			s.Begin()
			s.Handle(chunk("a"))
			require.True(t, s.Handle(tt.first))
			before := settled(t, s)

			for _, ev := range tt.then {
				assert.True(t, s.Handle(ev))
			}
			s.Finish()
			s.Fail(assert.AnError)

			after := settled(t, s)
			assert.Equal(t, before, after)
			assert.Equal(t, tt.wantPhase, after.Phase)
			assert.Equal(t, 1, calls)
			assert.Equal(t, "a", s.Accumulated())
		})
	}
}

func TestSessionProgressIsPrefixMonotonic(t *testing.T) {
	var progress []string
	s := NewSession(WithProgress(func(text string) {
		progress = append(progress, text)
	}))

	fragments := []string{"The ", "", "quick ", "brown ", "fox"}
	for _, f := range fragments {
		s.Handle(chunk(f))
	}
	s.Handle(end())

	require.Len(t, progress, len(fragments), "one notification per chunk")
	for i := 1; i < len(progress); i++ {
		assert.True(t, strings.HasPrefix(progress[i], progress[i-1]),
			"%q does not extend %q", progress[i], progress[i-1])
	}
	assert.Equal(t, "The quick brown fox", progress[len(progress)-1])
}

func TestSessionStartHandling(t *testing.T) {
	t.Run("repeated start keeps the first id", func(t *testing.T) {
		s := NewSession()
		s.Handle(start("t1"))
		s.Handle(start("t2"))
		assert.Equal(t, "t1", s.TopicID())
	})

	t.Run("start after chunk is ignored", func(t *testing.T) {
		s := NewSession()
		s.Handle(chunk("x"))
		s.Handle(start("t2"))
		assert.Empty(t, s.TopicID())
		assert.Equal(t, PhaseStreaming, s.Phase())
	})
}

func TestSessionFinish(t *testing.T) {
	t.Run("after chunks is a degraded completion", func(t *testing.T) {
		s := NewSession()
		s.Handle(chunk("ab"))
		s.Handle(chunk("cd"))
		s.Finish()

		r := settled(t, s)
		assert.Equal(t, PhaseCompleted, r.Phase)
		assert.True(t, r.Degraded)
		assert.Equal(t, "abcd", r.Content)
		assert.NoError(t, r.Err)
	})

	t.Run("without chunks is an empty stream error", func(t *testing.T) {
		s := NewSession()
		s.Begin()
		s.Handle(start("t1"))
		s.Finish()

		r := settled(t, s)
		assert.Equal(t, PhaseErrored, r.Phase)
		assert.ErrorIs(t, r.Err, apierrors.ErrEmptyStream)
		assert.True(t, r.Degraded)
		assert.Equal(t, "t1", r.TopicID)
	})
}

func TestSessionFail(t *testing.T) {
	s := NewSession()
	s.Fail(nil)
	_, ok := s.Result()
	assert.False(t, ok, "nil error does not settle")

	s.Fail(apierrors.NewTimeoutError(""))
	r := settled(t, s)
	assert.Equal(t, PhaseErrored, r.Phase)
	assert.True(t, apierrors.IsTimeoutError(r.Err))
}

func TestSessionHandleNil(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Handle(nil))
	s.Handle(end())
	assert.True(t, s.Handle(nil))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "awaiting", PhaseAwaiting.String())
	assert.Equal(t, "streaming", PhaseStreaming.String())
	assert.Equal(t, "errored", PhaseErrored.String())
	assert.Equal(t, "completed", PhaseCompleted.String())
	assert.Equal(t, "unknown", Phase(99).String())
	assert.True(t, PhaseErrored.IsTerminal())
	assert.False(t, PhaseStreaming.IsTerminal())
}
