package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/studychat/internal/errors"
	"github.com/diogo/studychat/internal/models"
)

func body(frames ...string) string {
	return strings.Join(frames, "\n\n")
}

var helloBody = body(
	`data:{"type":"start","topicId":"t1"}`,
	`data:{"type":"chunk","content":"Hel"}`,
	`data:{"type":"chunk","content":"lo"}`,
	`data:{"type":"end"}`,
) + "\n\n"

func TestConsumeReaders(t *testing.T) {
	halfEOF := func() io.Reader {
		return iotest.DataErrReader(iotest.HalfReader(strings.NewReader(helloBody)))
	}
	readers := map[string]func() io.Reader{
		"whole":      func() io.Reader { return strings.NewReader(helloBody) },
		"one byte":   func() io.Reader { return iotest.OneByteReader(strings.NewReader(helloBody)) },
		"half":       func() io.Reader { return iotest.HalfReader(strings.NewReader(helloBody)) },
		"data eof":   func() io.Reader { return iotest.DataErrReader(strings.NewReader(helloBody)) },
		"half + eof": halfEOF,
	}

	for name, mk := range readers {
		t.Run(name, func(t *testing.T) {
			var progress []string
			s := NewSession(WithProgress(func(text string) {
				progress = append(progress, text)
			}))

			r := Consume(context.Background(), mk(), s)

			assert.Equal(t, PhaseCompleted, r.Phase)
			assert.Equal(t, "Hello", r.Content)
			assert.Equal(t, "t1", r.TopicID)
			assert.False(t, r.Degraded)
			assert.Equal(t, []string{"Hel", "Hello"}, progress)
			assert.Equal(t, 4, r.Stats.Events)
		})
	}
}

func TestConsumeDegradedCompletion(t *testing.T) {
	in := body(
		`data:{"type":"chunk","content":"foo"}`,
		`data:{"type":"chunk","content":"bar"}`,
	) + "\n\n"

	r := Consume(context.Background(), strings.NewReader(in), NewSession())

	assert.Equal(t, PhaseCompleted, r.Phase)
	assert.True(t, r.Degraded)
	assert.Equal(t, "foobar", r.Content)
	assert.NoError(t, r.Err)
}

func TestConsumeErrorAfterChunk(t *testing.T) {
	in := body(
		`data:{"type":"chunk","content":"partial"}`,
		`data:{"type":"error","content":"rate limited"}`,
	)

	r := Consume(context.Background(), strings.NewReader(in), NewSession())

	assert.Equal(t, PhaseErrored, r.Phase)
	assert.Equal(t, "rate limited", r.ErrorMessage())
}

func TestConsumeFinalFrameWithoutSeparator(t *testing.T) {
	in := body(
		`data:{"type":"chunk","content":"x"}`,
		`data:{"type":"end","history":"[{\"role\":\"user\",\"content\":\"q\"},{\"role\":\"assistant\",\"content\":\"x\"}]"}`,
	)

	r := Consume(context.Background(), strings.NewReader(in), NewSession())

	assert.Equal(t, PhaseCompleted, r.Phase)
	assert.False(t, r.Degraded)
	require.True(t, r.HasHistory)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "x"},
	}, r.History)
}

func TestConsumeStopsAfterTerminal(t *testing.T) {
	in := body(
		`data:{"type":"chunk","content":"done"}`,
		`data:{"type":"end"}`,
		`data:{"type":"chunk","content":" extra"}`,
		`data:{"type":"error","content":"late"}`,
	)

	calls := 0
	r := Consume(context.Background(), strings.NewReader(in), NewSession(WithProgress(func(string) { calls++ })))

	assert.Equal(t, PhaseCompleted, r.Phase)
	assert.Equal(t, "done", r.Content)
	assert.Equal(t, 1, calls)
}

func TestConsumeSkipsMalformedFrames(t *testing.T) {
	in := body(
		`data:{"type":"chunk","content":"a"}`,
		`data:{"type":`,
		`event: ping`,
		`data:`,
		`data:{"type":"chunk","content":"b"}`,
		`data:{"type":"end"}`,
	)

	r := Consume(context.Background(), strings.NewReader(in), NewSession())

	assert.Equal(t, "ab", r.Content)
	assert.Equal(t, 1, r.Stats.Malformed)
	assert.Equal(t, 6, r.Stats.Frames)
	assert.Equal(t, 3, r.Stats.Events)
	assert.Equal(t, int64(len(in)), r.Stats.Bytes)
}

func TestConsumeEmptyBody(t *testing.T) {
	r := Consume(context.Background(), strings.NewReader(""), NewSession())

	assert.Equal(t, PhaseErrored, r.Phase)
	assert.ErrorIs(t, r.Err, apierrors.ErrEmptyStream)
}

func TestConsumeReadErrors(t *testing.T) {
	reset := errors.New("connection reset by peer")

	t.Run("after a chunk", func(t *testing.T) {
		in := io.MultiReader(
			strings.NewReader(`data:{"type":"chunk","content":"half"}`+"\n\n"),
			iotest.ErrReader(reset),
		)
		r := Consume(context.Background(), in, NewSession())

		assert.Equal(t, PhaseCompleted, r.Phase)
		assert.True(t, r.Degraded)
		assert.Equal(t, "half", r.Content)
	})

	t.Run("before any chunk", func(t *testing.T) {
		r := Consume(context.Background(), iotest.ErrReader(reset), NewSession())

		assert.Equal(t, PhaseErrored, r.Phase)
		assert.True(t, apierrors.IsNetworkError(r.Err))
		assert.ErrorIs(t, r.Err, reset)
	})
}

func TestConsumeContext(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := Consume(ctx, strings.NewReader(helloBody), NewSession())
		assert.Equal(t, PhaseErrored, r.Phase)
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Equal(t, "Request cancelled.", r.ErrorMessage())
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		r := Consume(ctx, strings.NewReader(helloBody), NewSession())
		assert.Equal(t, PhaseErrored, r.Phase)
		assert.True(t, apierrors.IsTimeoutError(r.Err))
	})

	t.Run("cancelled while reading", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		pr, pw := io.Pipe()
		stop := context.AfterFunc(ctx, func() { pr.CloseWithError(context.Canceled) })
		defer stop()

		s := NewSession(WithProgress(func(string) { cancel() }))
		go func() {
			_, _ = pw.Write([]byte(`data:{"type":"chunk","content":"x"}` + "\n\n"))
		}()

		r := Consume(ctx, pr, s)
		assert.Equal(t, PhaseErrored, r.Phase)
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Equal(t, "x", r.Content)
	})
}
