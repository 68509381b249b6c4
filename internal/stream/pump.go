package stream

import (
	"context"
	"errors"
	"io"

	apierrors "github.com/diogo/studychat/internal/errors"
)

const readBufferSize = 4096

// Consume reads body until the session settles, feeding every completed
// frame through the parser into s. Decoding, parsing and the state
// transition all run between reads on the calling goroutine. Reading stops
// at the first terminal event.
//
// A context error settles the session as errored (deadline as a
// TimeoutError). Any other read error after at least one chunk is a
// degraded completion; before any chunk it is a NetworkError.
func Consume(ctx context.Context, body io.Reader, s *Session) Result {
	s.Begin()

	dec := NewDecoder()
	parser := NewParser(s.logger)
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			s.Fail(contextError(err))
			break
		}

		n, err := body.Read(buf)
		if n > 0 {
			s.recordRead(n)
			frames, derr := dec.Decode(buf[:n])
			if derr != nil {
				s.recordMalformed()
				s.logger.Debug("dropping oversized frame", "limit", MaxFrameSize)
			}
			if dispatch(s, parser, frames) {
				break
			}
		}

		if errors.Is(err, io.EOF) {
			if last, ok := dec.Flush(); ok {
				dispatch(s, parser, []string{last})
			}
			s.Finish()
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.Fail(contextError(ctxErr))
			} else if s.Chunks() > 0 {
				s.logger.Warn("stream read failed after partial reply",
					"error", err, "chars", len(s.Accumulated()), "buffered", dec.Buffered())
				s.Finish()
			} else {
				s.Fail(apierrors.NewNetworkErrorWithEndpoint("read stream", "", err))
			}
			break
		}
	}

	r, _ := s.Result()
	return r
}

// dispatch feeds frames to the session and reports whether it settled
func dispatch(s *Session, parser *Parser, frames []string) bool {
	for _, frame := range frames {
		s.recordFrame()
		ev, err := parser.Parse(frame)
		if err != nil {
			s.recordMalformed()
			continue
		}
		if ev == nil {
			continue
		}
		if s.Handle(ev) {
			return true
		}
	}
	return false
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.NewTimeoutError("no reply before the deadline")
	}
	return err
}
