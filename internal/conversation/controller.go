package conversation

import (
	"context"
	"log/slog"

	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/stream"
)

// Sender streams one reply. Transport failures that happen before the
// stream starts are returned as err; everything after is in the Result.
type Sender interface {
	SendMessage(ctx context.Context, topicID, text string, progress stream.ProgressFunc) (stream.Result, error)
}

// UpdateFunc receives the active message list after every applied change
type UpdateFunc func(messages []models.Message)

// Controller runs sends against a State
type Controller struct {
	state  *State
	sender Sender
	logger *slog.Logger
}

// NewController creates a Controller
func NewController(state *State, sender Sender, logger *slog.Logger) *Controller {
	return &Controller{
		state:  state,
		sender: sender,
		logger: logging.OrDiscard(logger),
	}
}

// State returns the conversation state
func (c *Controller) State() *State {
	return c.state
}

// Send submits text to topicID and blocks until the reply settles.
// Validation failures are returned as err before any network activity;
// every later failure is reported in the Result and in the message list.
func (c *Controller) Send(ctx context.Context, topicID, text string, onUpdate UpdateFunc) (stream.Result, error) {
	p, err := c.state.Submit(topicID, text)
	if err != nil {
		return stream.Result{}, err
	}

	notify := func() {
		if onUpdate != nil {
			onUpdate(c.state.Messages())
		}
	}
	notify()

	logger := logging.FromContext(ctx, c.logger).With("topic_id", topicID, "pending_id", p.ID)
	logger.Debug("sending message", "chars", len(text))

	result, err := c.sender.SendMessage(ctx, topicID, text, func(accumulated string) {
		if c.state.OnProgress(p, accumulated) {
			notify()
		}
	})
	if err != nil {
		result = ResultFromError(err)
	}

	c.state.OnStart(p, result.TopicID)
	if c.state.OnSettled(p, result) {
		notify()
	}

	if result.Failed() {
		logger.Warn("send failed", "error", result.Err, "phase", result.Phase.String())
	} else {
		logger.Info("reply settled",
			"chars", len(result.Content),
			"degraded", result.Degraded,
			"history", result.HasHistory,
			"chunks", result.Stats.Chunks,
			"first_chunk", result.Stats.FirstChunk,
			"elapsed", result.Stats.Elapsed)
	}
	return result, nil
}

// ResultFromError maps a failure that happened before the stream started
// to an errored result.
func ResultFromError(err error) stream.Result {
	return stream.Result{Phase: stream.PhaseErrored, Err: err}
}
