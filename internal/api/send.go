package api

import (
	"context"
	"io"
	"mime"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"golang.org/x/net/html/charset"

	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/stream"
)

type sendRequest struct {
	Message string `json:"message"`
}

// SendMessage posts text to a topic and consumes the streamed reply,
// calling progress with the full accumulated text after every chunk.
//
// Failures before the stream starts (transport errors, non-2xx responses)
// are returned as err. Everything after is reported in the Result: a
// protocol error event, an expired timeout or a cancelled context all
// settle it as errored.
func (c *Client) SendMessage(ctx context.Context, topicID, text string, progress stream.ProgressFunc) (stream.Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	path := models.MessagesPath(topicID)
	req, requestID, err := c.newRequest(ctx, http.MethodPost, path, sendRequest{Message: text}, models.StreamHeaders())
	if err != nil {
		return stream.Result{}, err
	}

	ctx = logging.WithRequestID(ctx, requestID)
	logger := logging.FromContext(ctx, c.logger).With("topic_id", topicID)
	logger.Debug("sending message", "path", path)
	start := time.Now()

	resp, err := c.do(ctx, req, "send message", path)
	if err != nil {
		logger.Warn("send failed", "error", err)
		return stream.Result{}, err
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newStatusError(resp, path, "send message")
		logger.Warn("send rejected", "status", resp.StatusCode, "error", apiErr)
		return stream.Result{}, apiErr
	}

	// A blocked read only returns once the body is closed
	stop := context.AfterFunc(ctx, func() {
		_ = resp.Body.Close()
	})
	defer stop()

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, models.ContentTypeEventStream) {
		logger.Debug("unexpected content type", "content_type", contentType)
	}

	session := stream.NewSession(
		stream.WithProgress(progress),
		stream.WithLogger(logger),
	)
	result := stream.Consume(ctx, decodeBody(contentType, resp.Body), session)

	logger.Info("stream finished",
		"status", resp.StatusCode,
		"phase", result.Phase.String(),
		"degraded", result.Degraded,
		"bytes", result.Stats.Bytes,
		"frames", result.Stats.Frames,
		"malformed", result.Stats.Malformed,
		"elapsed", time.Since(start))

	return result, nil
}

// decodeBody converts a non-UTF-8 body to UTF-8 according to the charset
// parameter of contentType. The decoder is streaming, so frames still
// arrive as soon as their bytes do.
func decodeBody(contentType string, body io.Reader) io.Reader {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	label := params["charset"]
	if label == "" {
		return body
	}

	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return body
	}
	return enc.NewDecoder().Reader(body)
}
