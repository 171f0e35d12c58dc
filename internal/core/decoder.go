package core

import (
	"bytes"
	"strings"
)

// FramePrefix marks a segment that carries a payload
const FramePrefix = "data: "

var (
	boundaryLF   = []byte("\n\n")
	boundaryCRLF = []byte("\r\n\r\n")
)

// FrameDecoder rebuilds protocol frames from a byte stream delivered in arbitrary chunks.
// Segments are separated by a blank line. Only the bytes after the last complete boundary
// are kept between calls, so a frame split across chunks is emitted once, on the call
// that completes it.
type FrameDecoder struct {
	pending []byte
}

// NewFrameDecoder creates a decoder with an empty buffer
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends a chunk and returns the frames it completed, in stream order
func (d *FrameDecoder) Feed(chunk []byte) []Frame {
	d.pending = append(d.pending, chunk...)

	var frames []Frame
	for {
		idx, width := nextBoundary(d.pending)
		if idx < 0 {
			break
		}
		segment := d.pending[:idx]
		d.pending = d.pending[idx+width:]

		if frame, ok := parseSegment(segment); ok {
			frames = append(frames, frame)
		}
	}

	// Release consumed bytes once the buffer drains so it doesn't pin old chunks.
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return frames
}

// Pending returns the number of buffered bytes not yet part of a complete frame
func (d *FrameDecoder) Pending() int {
	return len(d.pending)
}

// Finish ends the stream. An unterminated trailing segment is never emitted; it is
// returned so callers can report it.
func (d *FrameDecoder) Finish() string {
	rest := string(d.pending)
	d.pending = nil
	return rest
}

// Reset discards any buffered bytes
func (d *FrameDecoder) Reset() {
	d.pending = nil
}

// nextBoundary finds the earliest blank line in buf and returns its index and width
func nextBoundary(buf []byte) (int, int) {
	lf := bytes.Index(buf, boundaryLF)
	crlf := bytes.Index(buf, boundaryCRLF)

	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf < 0:
		return lf, len(boundaryLF)
	case lf < 0 || crlf < lf:
		return crlf, len(boundaryCRLF)
	default:
		return lf, len(boundaryLF)
	}
}

// parseSegment turns a complete segment into a frame. Segments without the data prefix
// are comments or keep-alives.
func parseSegment(segment []byte) (Frame, bool) {
	text := strings.TrimLeft(string(segment), "\r\n")
	if !strings.HasPrefix(text, FramePrefix) {
		return Frame{}, false
	}
	payload := strings.TrimRight(text[len(FramePrefix):], "\r")
	return Frame{Payload: payload}, true
}
