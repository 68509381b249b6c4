// Package stream turns a streamed reply body into typed events and drives the
// per-send state machine that accumulates the reply text.
package stream

import (
	"bytes"

	apierrors "github.com/diogo/studychat/internal/errors"
)

// MaxFrameSize bounds the bytes buffered for a single frame
const MaxFrameSize = 1 << 20

var (
	frameSeparator = []byte("\n\n")
	crlf           = []byte("\r\n")
	lf             = []byte("\n")
)

// Decoder splits a byte stream into blank-line delimited frames.
// A Decoder is scoped to one response body and is not safe for concurrent use.
type Decoder struct {
	buf      []byte
	maxFrame int
	// pendingCR is set when the last chunk ended in '\r', which may be the
	// first half of a CRLF split across reads.
	pendingCR bool
	dropping  bool
}

// NewDecoder creates a Decoder with the default frame limit
func NewDecoder() *Decoder {
	return &Decoder{maxFrame: MaxFrameSize}
}

// Decode appends p to the buffer and returns every frame it completes, in
// order. The incomplete tail stays buffered. When the tail grows past the
// frame limit it is discarded up to the next separator and ErrFrameTooLarge
// is returned alongside any frames already completed.
func (d *Decoder) Decode(p []byte) ([]string, error) {
	if len(p) == 0 {
		return nil, nil
	}

	d.buf = append(d.buf, d.normalize(p)...)

	var (
		frames []string
		tooBig bool
	)
	for {
		idx := bytes.Index(d.buf, frameSeparator)
		if idx < 0 {
			break
		}
		if d.dropping {
			d.dropping = false
		} else {
			frames = append(frames, string(d.buf[:idx]))
		}
		d.buf = d.buf[idx+len(frameSeparator):]
	}

	if len(d.buf) > d.maxFrame {
		// Keep a trailing '\n' so a separator split across reads still closes
		// the dropped frame.
		keep := 0
		if d.buf[len(d.buf)-1] == '\n' {
			keep = 1
		}
		d.buf = append(d.buf[:0], d.buf[len(d.buf)-keep:]...)
		if !d.dropping {
			tooBig = true
		}
		d.dropping = true
	}

	if tooBig {
		return frames, apierrors.ErrFrameTooLarge
	}
	return frames, nil
}

// Flush returns the buffered remainder as a final frame when it holds
// anything besides whitespace. The decoder is empty afterwards.
func (d *Decoder) Flush() (string, bool) {
	rest := d.buf
	if d.pendingCR {
		rest = append(rest, '\r')
	}
	d.buf = nil
	dropping := d.dropping
	d.dropping = false
	d.pendingCR = false

	if dropping || len(bytes.TrimSpace(rest)) == 0 {
		return "", false
	}
	return string(rest), true
}

// Buffered returns the number of bytes held for the incomplete frame
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// normalize rewrites CRLF to LF, carrying a trailing '\r' into the next call.
func (d *Decoder) normalize(p []byte) []byte {
	if d.pendingCR {
		d.pendingCR = false
		if p[0] != '\n' {
			p = append([]byte{'\r'}, p...)
		}
	}
	if p[len(p)-1] == '\r' {
		d.pendingCR = true
		p = p[:len(p)-1]
	}
	if bytes.Contains(p, crlf) {
		p = bytes.ReplaceAll(p, crlf, lf)
	}
	return p
}
